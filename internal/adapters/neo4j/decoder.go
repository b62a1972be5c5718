package neo4j

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/txn"
)

// Records is the collected result of one statement.
type Records []*neo4j.Record

// decodeRecords maps each record to a row keyed by the RETURN aliases.
func decodeRecords(records Records) (decode.Rows, error) {
	rows := make(decode.Rows, 0, len(records))
	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("record %d is nil", i)
		}
		if len(rec.Keys) != len(rec.Values) {
			return nil, fmt.Errorf("record %d: %d keys for %d values", i, len(rec.Keys), len(rec.Values))
		}
		row := make(decode.Row, len(rec.Keys))
		for j, key := range rec.Keys {
			row[key] = rec.Values[j]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Decoders returns the record decoding of every read step.
func Decoders() txn.Decoders[Records] {
	d := txn.Decoders[Records]{}
	for _, step := range []intent.Step{
		intent.AtomicityLookup, intent.AtomicityCheck,
		intent.G0Lookup, intent.G0Check,
		intent.G1aLookup, intent.G1aRead,
		intent.G1bRead,
		intent.G1cRead,
		intent.IMPRead,
		intent.PMPCount,
		intent.OTVRead,
		intent.FRRead,
		intent.LURead,
		intent.WSModerators, intent.WSViolations,
	} {
		d[step] = decodeRecords
	}
	return d
}
