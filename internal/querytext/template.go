// Package querytext renders query and mutation text from typed templates.
//
// A template is plain text with ${name} slots. Every slot is declared with a
// Kind; values are coerced to that kind before they reach the query text, so
// numbers never end up quoted and strings never end up bare. A template can
// be rendered inline (values become literals, for languages without bind
// parameters) or bound (slots become placeholders and the values travel
// alongside the text).
package querytext

import (
	"fmt"
	"strconv"
	"strings"

	"pkt.systems/isocheck/api"
)

// Kind is the declared type of a slot.
type Kind uint8

const (
	// Int renders as an unquoted integer literal.
	Int Kind = iota + 1
	// String renders as a quoted, escaped string literal.
	String
	// Ref is a backend internal identifier. Quoters decide how to validate
	// and print it.
	Ref
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case String:
		return "string"
	case Ref:
		return "ref"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Slot declares a named parameter of a template.
type Slot struct {
	Name string
	Kind Kind
}

// IntSlot declares an integer slot.
func IntSlot(name string) Slot { return Slot{Name: name, Kind: Int} }

// StringSlot declares a string slot.
func StringSlot(name string) Slot { return Slot{Name: name, Kind: String} }

// RefSlot declares an internal identifier slot.
func RefSlot(name string) Slot { return Slot{Name: name, Kind: Ref} }

type part struct {
	text string
	slot string
}

// Template is an immutable parsed query text.
type Template struct {
	src   string
	parts []part
	slots []Slot
	kinds map[string]Kind
}

// New parses src. Every ${name} in src must be declared in slots and every
// declared slot must be used.
func New(src string, slots ...Slot) (*Template, error) {
	t := &Template{src: src, slots: slots, kinds: make(map[string]Kind, len(slots))}
	for _, s := range slots {
		if s.Name == "" {
			return nil, fmt.Errorf("querytext: empty slot name")
		}
		if s.Kind < Int || s.Kind > Ref {
			return nil, fmt.Errorf("querytext: slot %q: unknown kind %d", s.Name, s.Kind)
		}
		if _, dup := t.kinds[s.Name]; dup {
			return nil, fmt.Errorf("querytext: slot %q declared twice", s.Name)
		}
		t.kinds[s.Name] = s.Kind
	}
	used := make(map[string]bool, len(slots))
	rest := src
	for {
		idx := strings.Index(rest, "${")
		if idx < 0 {
			if rest != "" {
				t.parts = append(t.parts, part{text: rest})
			}
			break
		}
		if idx > 0 {
			t.parts = append(t.parts, part{text: rest[:idx]})
		}
		end := strings.IndexByte(rest[idx:], '}')
		if end < 0 {
			return nil, fmt.Errorf("querytext: unterminated slot at offset %d", len(src)-len(rest)+idx)
		}
		name := rest[idx+2 : idx+end]
		if _, ok := t.kinds[name]; !ok {
			return nil, fmt.Errorf("querytext: undeclared slot %q", name)
		}
		used[name] = true
		t.parts = append(t.parts, part{slot: name})
		rest = rest[idx+end+1:]
	}
	for _, s := range slots {
		if !used[s.Name] {
			return nil, fmt.Errorf("querytext: slot %q declared but unused", s.Name)
		}
	}
	return t, nil
}

// MustNew is New for package-level templates; it panics on a malformed
// template.
func MustNew(src string, slots ...Slot) *Template {
	t, err := New(src, slots...)
	if err != nil {
		panic(err)
	}
	return t
}

// Source returns the unrendered template text.
func (t *Template) Source() string { return t.src }

// Slots returns the declared slots in declaration order.
func (t *Template) Slots() []Slot {
	out := make([]Slot, len(t.slots))
	copy(out, t.slots)
	return out
}

// Quoter prints a coerced value as a literal of the target language.
type Quoter func(kind Kind, value any) (string, error)

// Inline renders t with every slot replaced by a literal produced by quote.
func (t *Template) Inline(vals api.Params, quote Quoter) (string, error) {
	var b strings.Builder
	b.Grow(len(t.src) + 16*len(t.slots))
	for _, p := range t.parts {
		if p.slot == "" {
			b.WriteString(p.text)
			continue
		}
		v, err := t.value(vals, p.slot)
		if err != nil {
			return "", err
		}
		lit, err := quote(t.kinds[p.slot], v)
		if err != nil {
			return "", api.ParamError(p.slot, err)
		}
		b.WriteString(lit)
	}
	return b.String(), nil
}

// Named renders t with every slot replaced by $name and returns the coerced
// values keyed by slot name.
func (t *Template) Named(vals api.Params) (string, map[string]any, error) {
	var b strings.Builder
	args := make(map[string]any, len(t.slots))
	for _, p := range t.parts {
		if p.slot == "" {
			b.WriteString(p.text)
			continue
		}
		if _, seen := args[p.slot]; !seen {
			v, err := t.value(vals, p.slot)
			if err != nil {
				return "", nil, err
			}
			args[p.slot] = v
		}
		b.WriteByte('$')
		b.WriteString(p.slot)
	}
	return b.String(), args, nil
}

// Positional renders t with every slot occurrence replaced by placeholder(n),
// n counting from 1, and returns the coerced values in occurrence order.
func (t *Template) Positional(vals api.Params, placeholder func(n int) string) (string, []any, error) {
	var b strings.Builder
	var args []any
	for _, p := range t.parts {
		if p.slot == "" {
			b.WriteString(p.text)
			continue
		}
		v, err := t.value(vals, p.slot)
		if err != nil {
			return "", nil, err
		}
		args = append(args, v)
		b.WriteString(placeholder(len(args)))
	}
	return b.String(), args, nil
}

func (t *Template) value(vals api.Params, name string) (any, error) {
	raw, ok := vals[name]
	if !ok {
		return nil, api.ParamError(name, fmt.Errorf("missing"))
	}
	v, err := Coerce(t.kinds[name], raw)
	if err != nil {
		return nil, api.ParamError(name, err)
	}
	return v, nil
}

// Coerce converts raw to the Go type used for kind: int64 for Int, string for
// String. Ref values keep integer identifiers as int64 and strings as is.
func Coerce(kind Kind, raw any) (any, error) {
	switch kind {
	case Int:
		n, ok := api.AsInt(raw)
		if !ok {
			return nil, fmt.Errorf("want integer, got %T %v", raw, raw)
		}
		return n, nil
	case String:
		s, ok := api.AsString(raw)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", raw)
		}
		return s, nil
	case Ref:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		n, ok := api.AsInt(raw)
		if !ok {
			return nil, fmt.Errorf("want identifier, got %T", raw)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown kind %s", kind)
	}
}

// Dollar numbers placeholders $1, $2, ... as PostgreSQL expects.
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Question uses ? for every placeholder.
func Question(int) string { return "?" }

// QuoteString returns s as a double-quoted literal with backslash escapes for
// quotes, backslashes and control characters.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
