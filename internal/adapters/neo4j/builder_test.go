package neo4j

import (
	"errors"
	"strings"
	"testing"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/intent"
)

func TestBuildersCoverEveryStep(t *testing.T) {
	b := Builders()
	for _, step := range intent.All() {
		if _, ok := b[step]; !ok {
			t.Errorf("no builder for %s", step)
		}
	}
}

func TestParametersAreBoundNotInlined(t *testing.T) {
	st, err := Builders().Build(intent.AtomicityCommit, api.Params{
		api.ParamPerson1ID: "1",
		api.ParamPerson2ID: 3,
		api.ParamNewEmail:  "x' OR 1=1 //",
		api.ParamSince:     2020,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(st.Cypher, "OR 1=1") {
		t.Fatalf("value leaked into cypher:\n%s", st.Cypher)
	}
	for _, want := range []string{"$person1Id", "$person2Id", "$newEmail", "$since"} {
		if !strings.Contains(st.Cypher, want) {
			t.Fatalf("missing %s in:\n%s", want, st.Cypher)
		}
	}
	if st.Params[api.ParamPerson1ID] != int64(1) || st.Params[api.ParamPerson2ID] != int64(3) {
		t.Fatalf("ids not coerced to int64: %#v", st.Params)
	}
	if st.Params[api.ParamSince] != "2020" {
		t.Fatalf("since not coerced to string: %#v", st.Params[api.ParamSince])
	}
}

func TestG0AppendBindsTransactionIDAsText(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want string
	}{
		{7, "7"},
		{"t1", "t1"},
	} {
		st, err := Builders().Build(intent.G0Append, api.Params{
			intent.KeyP1Ref:        int64(10),
			intent.KeyKRef:         int64(11),
			intent.KeyP2Ref:        int64(12),
			api.ParamTransactionID: tc.in,
		})
		if err != nil {
			t.Fatalf("%v: build: %v", tc.in, err)
		}
		if n := strings.Count(st.Cypher, "[$transactionId]"); n != 3 {
			t.Fatalf("expected 3 appends of $transactionId, got %d:\n%s", n, st.Cypher)
		}
		if len(st.Params) != 4 || st.Params[api.ParamTransactionID] != tc.want {
			t.Fatalf("%v: unexpected params %#v", tc.in, st.Params)
		}
	}
}

func TestG0InitSeedsTextHistories(t *testing.T) {
	st, err := Builders().Build(intent.G0Init, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if n := strings.Count(st.Cypher, "versionHistory: ['0']"); n != 3 {
		t.Fatalf("expected 3 text histories, got %d:\n%s", n, st.Cypher)
	}
}

func TestG1cWriteKeepsIntegerVersion(t *testing.T) {
	if _, err := Builders().Build(intent.G1cWrite, api.Params{api.ParamPerson1ID: 1, api.ParamTransactionID: "t4"}); !errors.Is(err, api.ErrParam) {
		t.Fatalf("expected param error for text version, got %v", err)
	}
}

func TestCountsAreGroupedByMatchedEntity(t *testing.T) {
	for step, want := range map[intent.Step]string{
		intent.WSModerators: "WITH f, count(h) AS modCount\nRETURN modCount",
		intent.PMPCount:     "WITH po, count(l) AS likes\nRETURN likes",
	} {
		st, err := Builders().Build(step, api.Params{api.ParamForumID: 9, api.ParamPostID: 9})
		if err != nil {
			t.Fatalf("%s: build: %v", step, err)
		}
		if !strings.HasSuffix(st.Cypher, want) {
			t.Fatalf("%s: count must be grouped so a missing entity yields no row:\n%s", step, st.Cypher)
		}
	}
}

func TestFRReadDropsClosingNode(t *testing.T) {
	st, err := Builders().Build(intent.FRRead, api.Params{api.ParamPersonID: 1})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(st.Cypher, "nodes(path)[0..-1]") {
		t.Fatalf("unexpected cypher:\n%s", st.Cypher)
	}
}

func TestStaticFixturesTakeNoParams(t *testing.T) {
	for _, step := range []intent.Step{intent.AtomicityInit, intent.G0Init, intent.OTVInit, intent.FRInit, intent.WSInit} {
		st, err := Builders().Build(step, nil)
		if err != nil {
			t.Fatalf("%s: %v", step, err)
		}
		if len(st.Params) != 0 || !strings.HasPrefix(st.Cypher, "CREATE") {
			t.Fatalf("%s: unexpected statement %+v", step, st)
		}
	}
}
