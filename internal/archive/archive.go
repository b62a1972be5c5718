// Package archive persists one record per catalog operation call so a trial
// can be inspected after the fact. Records are JSON documents keyed by
// backend, operation and a time-ordered identifier.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("archive: record not found")

// Record is one archived operation call.
type Record struct {
	ID            string         `json:"id" yaml:"id"`
	Backend       string         `json:"backend" yaml:"backend"`
	Op            string         `json:"op" yaml:"op"`
	CorrelationID string         `json:"cid,omitempty" yaml:"cid,omitempty"`
	Params        map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Result        map[string]any `json:"result,omitempty" yaml:"result,omitempty"`
	Outcome       string         `json:"outcome" yaml:"outcome"`
	Error         string         `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt     time.Time      `json:"started_at" yaml:"started_at"`
	ElapsedMS     int64          `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// Store is an archive backend. Implementations are safe for concurrent use.
type Store interface {
	Put(ctx context.Context, key string, doc []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// NewID returns a time-ordered record identifier.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("archive: generate id: %w", err)
	}
	return id.String(), nil
}

// Key returns the object key of rec. Keys sort by time within one backend
// and operation.
func Key(rec Record) string {
	return path.Join(keySegment(rec.Backend), keySegment(rec.Op), rec.ID+".json")
}

func keySegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// Encode renders rec as an indented JSON document.
func Encode(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("archive: encode %s: %w", rec.ID, err)
	}
	return buf.Bytes(), nil
}

// Decode parses a document written by Encode. Numbers stay exact.
func Decode(doc []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("archive: decode: %w", err)
	}
	return rec, nil
}

// Open returns the store named by rawURL:
//
//	mem://
//	disk:///var/lib/isocheck/trials
//	s3://bucket/prefix?endpoint=host:9000&region=us-east-1&insecure=1&path-style=1
func Open(rawURL string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("archive: parse %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "mem", "memory":
		return NewMemory(), nil
	case "disk", "file":
		root := u.Path
		if u.Host != "" {
			root = path.Join(u.Host, u.Path)
		}
		if root == "" {
			return nil, fmt.Errorf("archive: disk url needs a path")
		}
		return NewDisk(root)
	case "s3":
		q := u.Query()
		cfg := S3Config{
			Endpoint:       q.Get("endpoint"),
			Region:         q.Get("region"),
			Bucket:         u.Host,
			Prefix:         strings.Trim(u.Path, "/"),
			Insecure:       boolParam(q.Get("insecure")),
			ForcePathStyle: boolParam(q.Get("path-style")),
		}
		return NewS3(cfg)
	default:
		return nil, fmt.Errorf("archive: unsupported scheme %q", u.Scheme)
	}
}

func boolParam(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
