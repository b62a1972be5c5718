package sqlgraph

import (
	"fmt"

	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/txn"
)

func identity(rows decode.Rows) (decode.Rows, error) { return rows, nil }

// decodeHops folds the v1..v4 columns of the first row into versions.
func decodeHops(rows decode.Rows) (decode.Rows, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	versions := make([]any, 0, intent.CycleLength)
	for i := 1; i <= intent.CycleLength; i++ {
		col := fmt.Sprintf("v%d", i)
		v, ok := rows[0][col]
		if !ok {
			return nil, fmt.Errorf("missing column %s", col)
		}
		versions = append(versions, v)
	}
	return decode.Rows{{intent.KeyVersions: versions}}, nil
}

// decodeChain folds one version per row, in row order, into versions.
func decodeChain(rows decode.Rows) (decode.Rows, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	versions := make([]any, 0, len(rows))
	for i, row := range rows {
		v, ok := row[intent.KeyVersion]
		if !ok {
			return nil, fmt.Errorf("row %d: missing column %s", i, intent.KeyVersion)
		}
		versions = append(versions, v)
	}
	return decode.Rows{{intent.KeyVersions: versions}}, nil
}

// Decoders returns the row decoding of every read step.
func Decoders() txn.Decoders[decode.Rows] {
	d := txn.Decoders[decode.Rows]{
		intent.OTVRead: decodeHops,
		intent.FRRead:  decodeChain,
	}
	for _, step := range []intent.Step{
		intent.AtomicityLookup, intent.AtomicityCheck,
		intent.G0Lookup, intent.G0Check,
		intent.G1aLookup, intent.G1aRead,
		intent.G1bRead,
		intent.G1cRead,
		intent.IMPRead,
		intent.PMPCount,
		intent.LURead,
		intent.WSModerators, intent.WSViolations,
	} {
		d[step] = identity
	}
	return d
}
