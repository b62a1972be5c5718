package dgraph

import (
	"bytes"
	"encoding/json"
	"fmt"

	dgapi "github.com/dgraph-io/dgo/v230/protos/api"

	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/txn"
)

// facetKey is how Dgraph reports a facet of the edge it is nested under.
func facetKey(predicate, facet string) string { return predicate + "|" + facet }

type object = map[string]any

func parse(resp *dgapi.Response) (object, error) {
	if resp == nil || len(resp.Json) == 0 {
		return object{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(resp.Json))
	dec.UseNumber()
	var out object
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if out == nil {
		out = object{}
	}
	return out, nil
}

// block returns the objects of a named query block. A missing block is an
// empty result.
func block(doc object, name string) ([]object, error) {
	raw, ok := doc[name]
	if !ok || raw == nil {
		return nil, nil
	}
	return objects(name, raw)
}

func objects(name string, raw any) ([]object, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: want list, got %T", name, raw)
	}
	out := make([]object, 0, len(list))
	for i, e := range list {
		obj, ok := e.(object)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: want object, got %T", name, i, e)
		}
		out = append(out, obj)
	}
	return out, nil
}

// rowsOf copies every object in block "all" into a row unchanged.
func rowsOf(resp *dgapi.Response) (decode.Rows, error) {
	doc, err := parse(resp)
	if err != nil {
		return nil, err
	}
	objs, err := block(doc, "all")
	if err != nil {
		return nil, err
	}
	rows := make(decode.Rows, 0, len(objs))
	for _, obj := range objs {
		rows = append(rows, decode.Row(obj))
	}
	return rows, nil
}

// countOf reads one aggregate from a single-object block. Dgraph drops the
// block when the aggregate has nothing to fold over; that is reported as 0.
func countOf(doc object, name, alias string) (any, error) {
	objs, err := block(doc, name)
	if err != nil {
		return nil, err
	}
	for _, obj := range objs {
		if v, ok := obj[alias]; ok {
			return v, nil
		}
		if v, ok := obj["count"]; ok {
			return v, nil
		}
	}
	return int64(0), nil
}

func decodeAtomicityCheck(resp *dgapi.Response) (decode.Rows, error) {
	doc, err := parse(resp)
	if err != nil {
		return nil, err
	}
	row := decode.Row{}
	for _, c := range []struct{ block, key string }{
		{"persons", intent.KeyNumPersons},
		{"names", intent.KeyNumNames},
		{"emails", intent.KeyNumEmails},
	} {
		v, err := countOf(doc, c.block, c.key)
		if err != nil {
			return nil, err
		}
		row[c.key] = v
	}
	return decode.Rows{row}, nil
}

// decodeG0 flattens the person1 → knows → person2 nesting into one row per
// matched edge. A person1 without the edge yields no row.
func decodeG0(resp *dgapi.Response) (decode.Rows, error) {
	doc, err := parse(resp)
	if err != nil {
		return nil, err
	}
	p1s, err := block(doc, "all")
	if err != nil {
		return nil, err
	}
	var rows decode.Rows
	for _, p1 := range p1s {
		edges, ok := p1["knows"]
		if !ok {
			continue
		}
		p2s, err := objects("knows", edges)
		if err != nil {
			return nil, err
		}
		for _, p2 := range p2s {
			row := decode.Row{
				intent.KeyP1VersionHistory: p1[intent.KeyP1VersionHistory],
				intent.KeyKVersionHistory:  p2[facetKey("knows", "versionHistory")],
				intent.KeyP2VersionHistory: p2[intent.KeyP2VersionHistory],
			}
			if ref, ok := p1[intent.KeyP1Ref]; ok {
				row[intent.KeyP1Ref] = ref
			}
			if ref, ok := p2[intent.KeyP2Ref]; ok {
				row[intent.KeyP2Ref] = ref
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// decodeChain walks the nested knows chain and collects version at each of
// the first four hops, in traversal order.
func decodeChain(resp *dgapi.Response) (decode.Rows, error) {
	doc, err := parse(resp)
	if err != nil {
		return nil, err
	}
	roots, err := block(doc, "all")
	if err != nil || len(roots) == 0 {
		return nil, err
	}
	versions := make([]any, 0, intent.CycleLength)
	node := roots[0]
	for hop := 0; hop < intent.CycleLength; hop++ {
		v, ok := node["version"]
		if !ok {
			return nil, fmt.Errorf("hop %d: missing version", hop)
		}
		versions = append(versions, v)
		if hop == intent.CycleLength-1 {
			break
		}
		next, err := objects("knows", node["knows"])
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", hop, err)
		}
		if len(next) == 0 {
			return nil, fmt.Errorf("hop %d: chain ends early", hop)
		}
		node = next[0]
	}
	return decode.Rows{{intent.KeyVersions: versions}}, nil
}

// Decoders returns the JSON decoding of every read step.
func Decoders() txn.Decoders[*dgapi.Response] {
	return txn.Decoders[*dgapi.Response]{
		intent.AtomicityLookup: rowsOf,
		intent.AtomicityCheck:  decodeAtomicityCheck,
		intent.G0Lookup:        decodeG0,
		intent.G0Check:         decodeG0,
		intent.G1aLookup:       rowsOf,
		intent.G1aRead:         rowsOf,
		intent.G1bRead:         rowsOf,
		intent.G1cRead:         rowsOf,
		intent.IMPRead:         rowsOf,
		intent.PMPCount:        rowsOf,
		intent.OTVRead:         decodeChain,
		intent.FRRead:          decodeChain,
		intent.LURead:          rowsOf,
		intent.WSModerators:    rowsOf,
		intent.WSViolations:    rowsOf,
	}
}
