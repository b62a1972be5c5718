// Package correlation tags every catalog operation with an identifier that
// follows it through logs, spans and archived trial records.
package correlation

import (
	"context"
	"strings"

	"github.com/rs/xid"
)

// MaxIDLength bounds identifiers accepted from callers.
const MaxIDLength = 128

type contextKey struct{}

// With returns ctx carrying id. Invalid identifiers leave ctx unchanged.
func With(ctx context.Context, id string) context.Context {
	normalized, ok := Normalize(id)
	if !ok {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, normalized)
}

// ID returns the identifier carried by ctx, or "".
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Ensure returns ctx with an identifier, generating one when ctx has none.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := ID(ctx); id != "" {
		return ctx, id
	}
	id := Generate()
	return With(ctx, id), id
}

// Normalize trims id and rejects empty, overlong or non-printable values.
func Normalize(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxIDLength {
		return "", false
	}
	for _, r := range id {
		if r < 0x20 || r > 0x7e {
			return "", false
		}
	}
	return id, true
}

// Generate returns a new sortable identifier.
func Generate() string {
	return xid.New().String()
}
