package dgraph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	dgapi "github.com/dgraph-io/dgo/v230/protos/api"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/querytext"
	"pkt.systems/isocheck/internal/txn"
)

var uidPattern = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)

// quote prints DQL and N-Quad literals. Ids are string predicates, so callers
// pass integer ids through String slots.
func quote(kind querytext.Kind, v any) (string, error) {
	switch kind {
	case querytext.Int:
		return strconv.FormatInt(v.(int64), 10), nil
	case querytext.String:
		return querytext.QuoteString(v.(string)), nil
	case querytext.Ref:
		s, ok := v.(string)
		if !ok || !uidPattern.MatchString(s) {
			return "", fmt.Errorf("not a uid: %v", v)
		}
		return s, nil
	default:
		return "", fmt.Errorf("unsupported kind %s", kind)
	}
}

// statement is one request shape: an optional query block, optional N-Quads
// to set, and an optional upsert condition.
type statement struct {
	query *querytext.Template
	set   *querytext.Template
	cond  string
}

func (s statement) build(p api.Params) (*dgapi.Request, error) {
	req := &dgapi.Request{}
	if s.query != nil {
		q, err := s.query.Inline(p, quote)
		if err != nil {
			return nil, err
		}
		req.Query = q
	}
	if s.set != nil {
		nquads, err := s.set.Inline(p, quote)
		if err != nil {
			return nil, err
		}
		req.Mutations = []*dgapi.Mutation{{SetNquads: []byte(nquads), Cond: s.cond}}
	}
	return req, nil
}

func (s statement) fn() txn.BuildFunc[*dgapi.Request] { return s.build }

func tpl(src string, slots ...querytext.Slot) *querytext.Template {
	return querytext.MustNew(strings.TrimSpace(src)+"\n", slots...)
}

var (
	personID  = querytext.StringSlot(api.ParamPersonID)
	person1ID = querytext.StringSlot(api.ParamPerson1ID)
	person2ID = querytext.StringSlot(api.ParamPerson2ID)
	postID    = querytext.StringSlot(api.ParamPostID)
	forumID   = querytext.StringSlot(api.ParamForumID)
)

// lookupRef matches one person by id and yields its uid as ref.
const lookupRef = `
{
  all(func: eq(id, ${%s})) @filter(type(Person)) {
    ref: uid
  }
}`

func personVar(name, slot string) string {
	return fmt.Sprintf("  %s as var(func: eq(id, ${%s})) @filter(type(Person))\n", name, slot)
}

// fourHops visits the first four persons of the knows chain starting at
// personId and binds each uid with its next value of predicate.
func fourHops(predicate string) string {
	var b strings.Builder
	b.WriteString("{\n  p1 as var(func: eq(id, ${personId})) @filter(type(Person)) {\n")
	indent := "    "
	for i := 1; i <= intent.CycleLength; i++ {
		fmt.Fprintf(&b, "%sv%d as %s\n", indent, i, predicate)
		fmt.Fprintf(&b, "%sn%d as math(v%d + 1)\n", indent, i, i)
		if i < intent.CycleLength {
			fmt.Fprintf(&b, "%sp%d as knows {\n", indent, i+1)
			indent += "  "
		}
	}
	for i := intent.CycleLength - 1; i >= 1; i-- {
		indent = indent[:len(indent)-2]
		fmt.Fprintf(&b, "%s}\n", indent)
	}
	b.WriteString("  }\n}")
	return b.String()
}

func fourHopsSet(predicate string) string {
	var b strings.Builder
	for i := 1; i <= intent.CycleLength; i++ {
		fmt.Fprintf(&b, "uid(p%d) <%s> val(n%d) .\n", i, predicate, i)
	}
	return b.String()
}

// chainRead reads version along the first four persons of the knows chain.
func chainRead() string {
	var b strings.Builder
	b.WriteString("{\n  all(func: eq(id, ${personId})) @filter(type(Person)) {\n")
	indent := "    "
	for i := 1; i <= intent.CycleLength; i++ {
		fmt.Fprintf(&b, "%sversion\n", indent)
		if i < intent.CycleLength {
			fmt.Fprintf(&b, "%sknows {\n", indent)
			indent += "  "
		}
	}
	for i := intent.CycleLength - 1; i >= 1; i-- {
		indent = indent[:len(indent)-2]
		fmt.Fprintf(&b, "%s}\n", indent)
	}
	b.WriteString("  }\n}")
	return b.String()
}

// cycleFixture seeds persons 1..4 with version 0 joined in a knows cycle.
func cycleFixture() string {
	var b strings.Builder
	for i := 1; i <= intent.CycleLength; i++ {
		fmt.Fprintf(&b, "_:p%d <dgraph.type> \"Person\" .\n_:p%d <id> \"%d\" .\n_:p%d <version> \"0\" .\n", i, i, i, i)
	}
	for i := 1; i <= intent.CycleLength; i++ {
		fmt.Fprintf(&b, "_:p%d <knows> _:p%d .\n", i, i%intent.CycleLength+1)
	}
	return b.String()
}

func persons(n int, extra func(i int) string) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "_:p%d <dgraph.type> \"Person\" .\n_:p%d <id> \"%d\" .\n", i, i, i)
		if extra != nil {
			b.WriteString(extra(i))
		}
	}
	return b.String()
}

func wsFixture() string {
	var b strings.Builder
	b.WriteString(persons(4, nil))
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, "_:f%d <dgraph.type> \"Forum\" .\n_:f%d <id> \"%d\" .\n", i, i, i)
	}
	return b.String()
}

func versionFixture(ids []int, version int) string {
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "_:p%d <dgraph.type> \"Person\" .\n_:p%d <id> \"%d\" .\n_:p%d <version> \"%d\" .\n", id, id, id, id, version)
	}
	return b.String()
}

func readVersion(alias, slot string) string {
	return fmt.Sprintf("{\n  all(func: eq(id, ${%s})) @filter(type(Person)) {\n    %s: version\n  }\n}", slot, alias)
}

// Derived slots for the G0 append, filled from the lookup row.
const (
	slotP1History = "p1History"
	slotP2History = "p2History"
	slotKHistory  = "kHistory"
)

var g0Append = tpl(`
<${p1Ref}> <versionHistory> ${p1History} .
<${p2Ref}> <versionHistory> ${p2History} .
<${p1Ref}> <knows> <${p2Ref}> (versionHistory=${kHistory}) .`,
	querytext.RefSlot(intent.KeyP1Ref),
	querytext.RefSlot(intent.KeyP2Ref),
	querytext.StringSlot(slotP1History),
	querytext.StringSlot(slotP2History),
	querytext.StringSlot(slotKHistory),
)

// buildG0Append appends transactionId to the three histories read by the
// lookup. Histories are kept as joined text because list predicates are
// unordered sets.
func buildG0Append(p api.Params) (*dgapi.Request, error) {
	txID, err := p.Value(api.ParamTransactionID)
	if err != nil {
		return nil, err
	}
	entry, err := decode.HistoryText(txID)
	if err != nil {
		return nil, api.ParamError(api.ParamTransactionID, err)
	}
	derived := make(map[string]any, 3)
	for slot, key := range map[string]string{
		slotP1History: intent.KeyP1VersionHistory,
		slotP2History: intent.KeyP2VersionHistory,
		slotKHistory:  intent.KeyKVersionHistory,
	} {
		history, err := decode.History(p[key])
		if err != nil {
			return nil, api.ParamError(key, err)
		}
		derived[slot] = decode.JoinHistory(history, entry)
	}
	return statement{set: g0Append}.build(p.Merge(derived))
}

func g0Histories(withRefs bool) string {
	p1Ref, p2Ref := "", ""
	if withRefs {
		p1Ref = "    p1Ref: uid\n"
		p2Ref = "      p2Ref: uid\n"
	}
	return "{\n  all(func: eq(id, ${person1Id})) @filter(type(Person)) {\n" + p1Ref +
		"    p1VersionHistory: versionHistory\n" +
		"    knows @filter(eq(id, ${person2Id})) @facets(versionHistory) {\n" + p2Ref +
		"      p2VersionHistory: versionHistory\n    }\n  }\n}"
}

// Builders returns the DQL rendering of every step.
func Builders() txn.Builders[*dgapi.Request] {
	return txn.Builders[*dgapi.Request]{
		intent.AtomicityInit: statement{set: tpl(`
_:alice <dgraph.type> "Person" .
_:alice <id> "1" .
_:alice <name> "Alice" .
_:alice <emails> "alice@aol.com" .
_:bob <dgraph.type> "Person" .
_:bob <id> "2" .
_:bob <name> "Bob" .
_:bob <emails> "bob@hotmail.com" .
_:bob <emails> "bobby@yahoo.com" .`)}.fn(),
		intent.AtomicityCommit: statement{
			query: tpl("{\n"+personVar("p1", api.ParamPerson1ID)+"}", person1ID),
			set: tpl(`
_:p2 <dgraph.type> "Person" .
_:p2 <id> ${person2Id} .
uid(p1) <knows> _:p2 (since=${since}) .
uid(p1) <emails> ${newEmail} .`,
				person2ID,
				querytext.StringSlot(api.ParamSince),
				querytext.StringSlot(api.ParamNewEmail),
			),
			cond: "@if(eq(len(p1), 1))",
		}.fn(),
		intent.AtomicityAppendEmail: statement{
			query: tpl("{\n"+personVar("p1", api.ParamPerson1ID)+"}", person1ID),
			set:   tpl(`uid(p1) <emails> ${newEmail} .`, querytext.StringSlot(api.ParamNewEmail)),
			cond:  "@if(eq(len(p1), 1))",
		}.fn(),
		intent.AtomicityLookup: statement{query: tpl(fmt.Sprintf(lookupRef, api.ParamPerson2ID), person2ID)}.fn(),
		intent.AtomicityCreate: statement{set: tpl(`
_:p2 <dgraph.type> "Person" .
_:p2 <id> ${person2Id} .`, person2ID)}.fn(),
		intent.AtomicityCheck: statement{query: tpl(`
{
  persons(func: type(Person)) {
    numPersons: count(uid)
  }
  names(func: type(Person)) @filter(has(name)) {
    numNames: count(uid)
  }
  var(func: type(Person)) {
    e as count(emails)
  }
  emails() {
    numEmails: sum(val(e))
  }
}`)}.fn(),

		intent.G0Init: statement{set: tpl(`
_:p1 <dgraph.type> "Person" .
_:p1 <id> "1" .
_:p1 <versionHistory> "0" .
_:p2 <dgraph.type> "Person" .
_:p2 <id> "2" .
_:p2 <versionHistory> "0" .
_:p1 <knows> _:p2 (versionHistory="0") .`)}.fn(),
		intent.G0Lookup: statement{query: tpl(g0Histories(true), person1ID, person2ID)}.fn(),
		intent.G0Append: buildG0Append,
		intent.G0Check:  statement{query: tpl(g0Histories(false), person1ID, person2ID)}.fn(),

		intent.G1aInit:   statement{set: tpl(versionFixture([]int{1}, 1))}.fn(),
		intent.G1aLookup: statement{query: tpl(fmt.Sprintf(lookupRef, api.ParamPersonID), personID)}.fn(),
		intent.G1aWrite:  statement{set: tpl(`<${ref}> <version> "2" .`, querytext.RefSlot(intent.KeyRef))}.fn(),
		intent.G1aRead:   statement{query: tpl(readVersion(intent.KeyPVersion, api.ParamPersonID), personID)}.fn(),

		intent.G1bInit: statement{set: tpl(versionFixture([]int{1}, 99))}.fn(),
		intent.G1bWriteEven: statement{
			query: tpl("{\n"+personVar("p", api.ParamPersonID)+"}", personID),
			set:   tpl(`uid(p) <version> "${even}" .`, querytext.IntSlot(api.ParamEven)),
		}.fn(),
		intent.G1bWriteOdd: statement{
			query: tpl("{\n"+personVar("p", api.ParamPersonID)+"}", personID),
			set:   tpl(`uid(p) <version> "${odd}" .`, querytext.IntSlot(api.ParamOdd)),
		}.fn(),
		intent.G1bRead: statement{query: tpl(readVersion(intent.KeyPVersion, api.ParamPersonID), personID)}.fn(),

		intent.G1cInit: statement{set: tpl(versionFixture([]int{1, 2}, 0))}.fn(),
		intent.G1cWrite: statement{
			query: tpl("{\n"+personVar("p", api.ParamPerson1ID)+"}", person1ID),
			set:   tpl(`uid(p) <version> "${transactionId}" .`, querytext.IntSlot(api.ParamTransactionID)),
		}.fn(),
		intent.G1cRead: statement{query: tpl(readVersion(intent.KeyPerson2Version, api.ParamPerson2ID), person2ID)}.fn(),

		intent.IMPInit: statement{set: tpl(versionFixture([]int{1}, 1))}.fn(),
		intent.IMPIncrement: statement{
			query: tpl(`
{
  p as var(func: eq(id, ${personId})) @filter(type(Person)) {
    v as version
    next as math(v + 1)
  }
}`, personID),
			set: tpl(`uid(p) <version> val(next) .`),
		}.fn(),
		intent.IMPRead: statement{query: tpl(readVersion(intent.KeyVersion, api.ParamPersonID), personID)}.fn(),

		intent.PMPInit: statement{set: tpl(`
_:pe <dgraph.type> "Person" .
_:pe <id> "1" .
_:po <dgraph.type> "Post" .
_:po <id> "1" .`)}.fn(),
		intent.PMPLike: statement{
			query: tpl(`
{
  pe as var(func: eq(id, ${personId})) @filter(type(Person))
  po as var(func: eq(id, ${postId})) @filter(type(Post))
}`, personID, postID),
			set:  tpl(`uid(po) <liked_by> uid(pe) .`),
			cond: "@if(eq(len(pe), 1) AND eq(len(po), 1))",
		}.fn(),
		intent.PMPCount: statement{query: tpl(`
{
  all(func: eq(id, ${postId})) @filter(type(Post)) {
    likes: count(liked_by)
  }
}`, postID)}.fn(),

		intent.OTVInit:      statement{set: tpl(cycleFixture())}.fn(),
		intent.OTVIncrement: statement{query: tpl(fourHops("version"), personID), set: tpl(fourHopsSet("version"))}.fn(),
		intent.OTVRead:      statement{query: tpl(chainRead(), personID)}.fn(),

		intent.FRInit:      statement{set: tpl(cycleFixture())}.fn(),
		intent.FRIncrement: statement{query: tpl(fourHops("version"), personID), set: tpl(fourHopsSet("version"))}.fn(),
		intent.FRRead:      statement{query: tpl(chainRead(), personID)}.fn(),

		intent.LUInit: statement{set: tpl(persons(1, func(i int) string {
			return fmt.Sprintf("_:p%d <numFriends> \"0\" .\n", i)
		}))}.fn(),
		intent.LUIncrement: statement{
			query: tpl(`
{
  p as var(func: eq(id, ${personId})) @filter(type(Person)) {
    f as numFriends
    next as math(f + 1)
  }
}`, personID),
			set: tpl(`
uid(p) <numFriends> val(next) .
_:friend <dgraph.type> "Person" .
_:friend <id> ${person2Id} .
uid(p) <knows> _:friend .`, person2ID),
			cond: "@if(eq(len(p), 1))",
		}.fn(),
		intent.LURead: statement{query: tpl(`
{
  all(func: eq(id, ${personId})) @filter(type(Person)) {
    numFriendsProp: numFriends
    numKnowsEdges: count(knows)
  }
}`, personID)}.fn(),

		intent.WSInit: statement{set: tpl(wsFixture())}.fn(),
		intent.WSModerators: statement{query: tpl(`
{
  all(func: eq(id, ${forumId})) @filter(type(Forum)) {
    modCount: count(hasModerator)
  }
}`, forumID)}.fn(),
		intent.WSAddModerator: statement{
			query: tpl(`
{
  f as var(func: eq(id, ${forumId})) @filter(type(Forum))
  p as var(func: eq(id, ${personId})) @filter(type(Person))
}`, forumID, personID),
			set:  tpl(`uid(f) <hasModerator> uid(p) .`),
			cond: "@if(eq(len(f), 1) AND eq(len(p), 1))",
		}.fn(),
		intent.WSViolations: statement{query: tpl(`
{
  all(func: type(Forum), orderasc: id) @filter(gt(count(hasModerator), 1)) {
    forumId: id
    modCount: count(hasModerator)
  }
}`)}.fn(),
	}
}
