package archive

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"

	"pkt.systems/isocheck/api"
)

func TestKeySanitizesSegments(t *testing.T) {
	rec := Record{ID: "0190", Backend: "neo4j", Op: "../g0"}
	if got := Key(rec); got != "neo4j/.._g0/0190.json" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := Key(Record{ID: "x", Backend: "", Op: ".."}); got != "_/_/x.json" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewIDIsTimeOrdered(t *testing.T) {
	prev := ""
	for i := 0; i < 50; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if id <= prev {
			t.Fatalf("id %s not after %s", id, prev)
		}
		prev = id
	}
}

func TestDecodeKeepsIntegers(t *testing.T) {
	doc, err := Encode(Record{ID: "a", Backend: "dgraph", Op: "g0check", Result: map[string]any{"p1VersionHistory": []any{int64(0), "t1"}}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rec, err := Decode(doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	history, ok := rec.Result["p1VersionHistory"].([]any)
	if !ok || len(history) != 2 {
		t.Fatalf("unexpected history %#v", rec.Result["p1VersionHistory"])
	}
	if n, ok := api.AsInt(history[0]); !ok || n != 0 {
		t.Fatalf("expected integer 0, got %#v", history[0])
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.Get(ctx, "dgraph/g0/missing.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	docs := map[string]string{
		"dgraph/g0/b.json":  `{"id":"b"}`,
		"dgraph/g0/a.json":  `{"id":"a"}`,
		"dgraph/ws1/c.json": `{"id":"c"}`,
		"neo4j/g0/d.json":   `{"id":"d"}`,
	}
	for key, doc := range docs {
		if err := store.Put(ctx, key, []byte(doc)); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	got, err := store.Get(ctx, "dgraph/g0/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"id":"a"}` {
		t.Fatalf("unexpected doc %q", got)
	}
	keys, err := store.List(ctx, "dgraph/g0/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Join(keys, ",") != "dgraph/g0/a.json,dgraph/g0/b.json" {
		t.Fatalf("unexpected keys %v", keys)
	}
	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 keys, got %v", all)
	}
	if err := store.Put(ctx, "dgraph/g0/a.json", []byte(`{"id":"a2"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = store.Get(ctx, "dgraph/g0/a.json")
	if err != nil || string(got) != `{"id":"a2"}` {
		t.Fatalf("unexpected overwrite result %q, %v", got, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestDiskStore(t *testing.T) {
	store, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("new disk: %v", err)
	}
	exerciseStore(t, store)
}

func TestDiskRejectsEscapingKeys(t *testing.T) {
	store, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("new disk: %v", err)
	}
	for _, key := range []string{"../outside.json", "/etc/passwd", ".."} {
		if err := store.Put(context.Background(), key, []byte("{}")); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}

func setupFakeS3(t *testing.T) (*httptest.Server, S3Config) {
	t.Helper()
	backend := s3mem.New()
	fs := gofakes3.New(backend)
	server := httptest.NewServer(fs.Server())
	bucket := "isocheck-test"
	if err := backend.CreateBucket(bucket); err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	os.Setenv("AWS_ACCESS_KEY_ID", "test")
	os.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	cfg := S3Config{
		Endpoint:       strings.TrimPrefix(server.URL, "http://"),
		Region:         "us-east-1",
		Bucket:         bucket,
		Prefix:         "/trials/",
		Insecure:       true,
		ForcePathStyle: true,
	}
	return server, cfg
}

func TestS3Store(t *testing.T) {
	server, cfg := setupFakeS3(t)
	defer server.Close()
	store, err := NewS3(cfg)
	if err != nil {
		t.Fatalf("new s3: %v", err)
	}
	exerciseStore(t, store)
}

func TestOpenDispatchesOnScheme(t *testing.T) {
	dir := t.TempDir()
	store, err := Open("disk://" + dir)
	if err != nil {
		t.Fatalf("open disk: %v", err)
	}
	if _, ok := store.(*Disk); !ok {
		t.Fatalf("expected disk store, got %T", store)
	}
	store, err = Open("mem://")
	if err != nil {
		t.Fatalf("open mem: %v", err)
	}
	if _, ok := store.(*Memory); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
	store, err = Open("s3://bucket/some/prefix?endpoint=localhost:9000&insecure=1&path-style=true")
	if err != nil {
		t.Fatalf("open s3: %v", err)
	}
	s3, ok := store.(*S3)
	if !ok {
		t.Fatalf("expected s3 store, got %T", store)
	}
	if s3.cfg.Bucket != "bucket" || s3.cfg.Prefix != "some/prefix" || !s3.cfg.Insecure || !s3.cfg.ForcePathStyle {
		t.Fatalf("unexpected s3 config %+v", s3.cfg)
	}
	if _, err := Open("ftp://host/x"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
	if _, err := Open("s3:///nobucket"); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestRecorderWritesLoadableRecords(t *testing.T) {
	store := NewMemory()
	rec := NewRecorder(store, "sqlite", nil)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec.now = func() time.Time { return base.Add(1500 * time.Millisecond) }
	ctx := context.Background()

	commitErr := &api.Error{Kind: api.ErrCommit, Op: "ws1", Err: errors.New("conflict")}
	if _, err := rec.Record(ctx, "ws1", "cid-1", base, api.Params{"forumId": int64(1)}, nil, commitErr); err != nil {
		t.Fatalf("record ws1: %v", err)
	}
	if _, err := rec.Record(ctx, "ws2", "cid-2", base, nil, api.Result{"forumId": int64(1), "modCount": int64(2)}, nil); err != nil {
		t.Fatalf("record ws2: %v", err)
	}

	records, err := Load(ctx, store, "sqlite/ws1/")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.Outcome != "commit" || got.CorrelationID != "cid-1" || got.ElapsedMS != 1500 {
		t.Fatalf("unexpected record %+v", got)
	}
	if !strings.Contains(got.Error, "conflict") {
		t.Fatalf("expected error text, got %q", got.Error)
	}
	records, err = Load(ctx, store, "sqlite/")
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].Outcome != "ok" {
		t.Fatalf("expected ok outcome, got %q", records[1].Outcome)
	}
}
