package sqlgraph

import (
	"fmt"
	"strings"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/decode"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/querytext"
	"pkt.systems/isocheck/internal/txn"
)

// Statement is one SQL statement with positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Script is an ordered list of statements run in one transaction. When Query
// is set, the rows of the last statement are the result.
type Script struct {
	Statements []Statement
	Query      bool
}

type script struct {
	parts []*querytext.Template
	query bool
	check func(api.Params) error
}

// guarded returns s with check run against the parameters before rendering.
func (s script) guarded(check func(api.Params) error) script {
	s.check = check
	return s
}

func (s script) render(placeholder func(int) string) txn.BuildFunc[Script] {
	return func(p api.Params) (Script, error) {
		if s.check != nil {
			if err := s.check(p); err != nil {
				return Script{}, err
			}
		}
		out := Script{Statements: make([]Statement, 0, len(s.parts)), Query: s.query}
		for _, t := range s.parts {
			text, args, err := t.Positional(p, placeholder)
			if err != nil {
				return Script{}, err
			}
			out.Statements = append(out.Statements, Statement{SQL: text, Args: args})
		}
		return out, nil
	}
}

func stmt(src string, slots ...querytext.Slot) *querytext.Template {
	return querytext.MustNew(strings.TrimSpace(src), slots...)
}

func exec(parts ...*querytext.Template) script  { return script{parts: parts} }
func query(parts ...*querytext.Template) script { return script{parts: parts, query: true} }

var (
	personID  = querytext.IntSlot(api.ParamPersonID)
	person1ID = querytext.IntSlot(api.ParamPerson1ID)
	person2ID = querytext.IntSlot(api.ParamPerson2ID)
	postID    = querytext.IntSlot(api.ParamPostID)
	forumID   = querytext.IntSlot(api.ParamForumID)
	newEmail  = querytext.StringSlot(api.ParamNewEmail)
)

func insertPersons(columns string, values ...string) *querytext.Template {
	return stmt("INSERT INTO person (" + columns + ") VALUES (" + strings.Join(values, "), (") + ")")
}

// linkKnows adds a knows edge between two fixture ids.
func linkKnows(src, dst int, history string) *querytext.Template {
	cols, vals := "src, dst", "a.uid, b.uid"
	if history != "" {
		cols += ", version_history"
		vals += ", '" + history + "'"
	}
	return stmt(fmt.Sprintf("INSERT INTO knows (%s) SELECT %s FROM person a, person b WHERE a.id = %d AND b.id = %d", cols, vals, src, dst))
}

func cycleFixture() []*querytext.Template {
	values := make([]string, 0, intent.CycleLength)
	for i := 1; i <= intent.CycleLength; i++ {
		values = append(values, fmt.Sprintf("%d, 0", i))
	}
	out := []*querytext.Template{insertPersons("id, version", values...)}
	for i := 1; i <= intent.CycleLength; i++ {
		out = append(out, linkKnows(i, i%intent.CycleLength+1, ""))
	}
	return out
}

// chain selects the uids of the first four persons along the knows chain
// from personId together with their distance.
var chain = fmt.Sprintf(`
WITH RECURSIVE chain (uid, depth) AS (
  SELECT uid, 1 FROM person WHERE id = ${personId}
  UNION ALL
  SELECT k.dst, c.depth + 1 FROM chain c JOIN knows k ON k.src = c.uid WHERE c.depth < %d
)`, intent.CycleLength)

// appendHistory appends transactionId to a comma-joined history column.
func appendHistory(table, ref string) *querytext.Template {
	return stmt(fmt.Sprintf("UPDATE %s SET version_history = version_history || '%s' || CAST(${transactionId} AS TEXT) WHERE uid = ${%s}",
		table, historySeparator, ref),
		querytext.StringSlot(api.ParamTransactionID), querytext.RefSlot(ref))
}

const historySeparator = decode.HistorySeparator

// appendableEntry rejects transaction ids that would not split back out of
// a joined history.
func appendableEntry(p api.Params) error {
	v, err := p.Value(api.ParamTransactionID)
	if err != nil {
		return err
	}
	if _, err := decode.HistoryText(v); err != nil {
		return api.ParamError(api.ParamTransactionID, err)
	}
	return nil
}

const g0Join = `
FROM person a
JOIN knows k ON k.src = a.uid
JOIN person b ON b.uid = k.dst
WHERE a.id = ${person1Id} AND b.id = ${person2Id}`

func steps() map[intent.Step]script {
	readVersion := func(alias string, slot querytext.Slot) script {
		return query(stmt(fmt.Sprintf(`SELECT version AS "%s" FROM person WHERE id = ${%s}`, alias, slot.Name), slot))
	}
	setVersion := func(slot querytext.Slot) script {
		return exec(stmt(fmt.Sprintf("UPDATE person SET version = ${%s} WHERE id = ${personId}", slot.Name), slot, personID))
	}
	return map[intent.Step]script{
		intent.AtomicityInit: exec(
			stmt("INSERT INTO person (id, name) VALUES (1, 'Alice'), (2, 'Bob')"),
			stmt("INSERT INTO person_email (person_uid, email) SELECT uid, 'alice@aol.com' FROM person WHERE id = 1"),
			stmt("INSERT INTO person_email (person_uid, email) SELECT uid, 'bob@hotmail.com' FROM person WHERE id = 2"),
			stmt("INSERT INTO person_email (person_uid, email) SELECT uid, 'bobby@yahoo.com' FROM person WHERE id = 2"),
		),
		intent.AtomicityCommit: exec(
			stmt("INSERT INTO person (id) SELECT CAST(${person2Id} AS BIGINT) FROM person WHERE id = ${person1Id}", person2ID, person1ID),
			stmt(`INSERT INTO knows (src, dst, since)
SELECT a.uid, b.uid, CAST(${since} AS TEXT) FROM person a, person b
WHERE a.id = ${person1Id} AND b.id = ${person2Id}`,
				querytext.StringSlot(api.ParamSince), person1ID, person2ID),
			stmt("INSERT INTO person_email (person_uid, email) SELECT uid, CAST(${newEmail} AS TEXT) FROM person WHERE id = ${person1Id}", newEmail, person1ID),
		),
		intent.AtomicityAppendEmail: exec(
			stmt("INSERT INTO person_email (person_uid, email) SELECT uid, CAST(${newEmail} AS TEXT) FROM person WHERE id = ${person1Id}", newEmail, person1ID),
		),
		intent.AtomicityLookup: query(stmt("SELECT uid AS ref FROM person WHERE id = ${person2Id}", person2ID)),
		intent.AtomicityCreate: exec(stmt("INSERT INTO person (id) VALUES (${person2Id})", person2ID)),
		intent.AtomicityCheck: query(stmt(`
SELECT (SELECT COUNT(*) FROM person) AS "numPersons",
       (SELECT COUNT(name) FROM person) AS "numNames",
       (SELECT COUNT(*) FROM person_email e JOIN person p ON p.uid = e.person_uid) AS "numEmails"`)),

		intent.G0Init: exec(
			insertPersons("id, version_history", "1, '0'", "2, '0'"),
			linkKnows(1, 2, "0"),
		),
		intent.G0Lookup: query(stmt(`SELECT a.uid AS "p1Ref", k.uid AS "kRef", b.uid AS "p2Ref"`+g0Join, person1ID, person2ID)),
		intent.G0Append: exec(
			appendHistory("person", intent.KeyP1Ref),
			appendHistory("person", intent.KeyP2Ref),
			appendHistory("knows", intent.KeyKRef),
		).guarded(appendableEntry),
		intent.G0Check: query(stmt(`
SELECT a.version_history AS "p1VersionHistory",
       k.version_history AS "kVersionHistory",
       b.version_history AS "p2VersionHistory"`+g0Join, person1ID, person2ID)),

		intent.G1aInit:   exec(insertPersons("id, version", "1, 1")),
		intent.G1aLookup: query(stmt("SELECT uid AS ref FROM person WHERE id = ${personId}", personID)),
		intent.G1aWrite:  exec(stmt("UPDATE person SET version = 2 WHERE uid = ${ref}", querytext.RefSlot(intent.KeyRef))),
		intent.G1aRead:   readVersion(intent.KeyPVersion, personID),

		intent.G1bInit:      exec(insertPersons("id, version", "1, 99")),
		intent.G1bWriteEven: setVersion(querytext.IntSlot(api.ParamEven)),
		intent.G1bWriteOdd:  setVersion(querytext.IntSlot(api.ParamOdd)),
		intent.G1bRead:      readVersion(intent.KeyPVersion, personID),

		intent.G1cInit: exec(insertPersons("id, version", "1, 0", "2, 0")),
		intent.G1cWrite: exec(stmt("UPDATE person SET version = ${transactionId} WHERE id = ${person1Id}",
			querytext.IntSlot(api.ParamTransactionID), person1ID)),
		intent.G1cRead: readVersion(intent.KeyPerson2Version, person2ID),

		intent.IMPInit:      exec(insertPersons("id, version", "1, 1")),
		intent.IMPIncrement: exec(stmt("UPDATE person SET version = version + 1 WHERE id = ${personId}", personID)),
		intent.IMPRead:      readVersion(intent.KeyVersion, personID),

		intent.PMPInit: exec(
			insertPersons("id", "1"),
			stmt("INSERT INTO post (id) VALUES (1)"),
		),
		intent.PMPLike: exec(stmt(`
INSERT INTO likes (person_uid, post_uid)
SELECT pe.uid, po.uid FROM person pe, post po
WHERE pe.id = ${personId} AND po.id = ${postId}`, personID, postID)),
		intent.PMPCount: query(stmt(`
SELECT COUNT(l.person_uid) AS likes
FROM post po LEFT JOIN likes l ON l.post_uid = po.uid
WHERE po.id = ${postId}
GROUP BY po.uid`, postID)),

		intent.OTVInit: exec(cycleFixture()...),
		intent.OTVIncrement: exec(stmt(chain+`
UPDATE person SET version = version + 1 WHERE uid IN (SELECT uid FROM chain)`, personID)),
		intent.OTVRead: query(stmt(`
SELECT p1.version AS v1, p2.version AS v2, p3.version AS v3, p4.version AS v4
FROM person p1
JOIN knows k1 ON k1.src = p1.uid JOIN person p2 ON p2.uid = k1.dst
JOIN knows k2 ON k2.src = p2.uid JOIN person p3 ON p3.uid = k2.dst
JOIN knows k3 ON k3.src = p3.uid JOIN person p4 ON p4.uid = k3.dst
JOIN knows k4 ON k4.src = p4.uid AND k4.dst = p1.uid
WHERE p1.id = ${personId}`, personID)),

		intent.FRInit: exec(cycleFixture()...),
		intent.FRIncrement: exec(stmt(chain+`
UPDATE person SET version = version + 1 WHERE uid IN (SELECT uid FROM chain)`, personID)),
		intent.FRRead: query(stmt(chain+`
SELECT p.version AS version FROM chain c JOIN person p ON p.uid = c.uid ORDER BY c.depth`, personID)),

		intent.LUInit: exec(insertPersons("id, num_friends", "1, 0")),
		intent.LUIncrement: exec(
			stmt("INSERT INTO person (id) SELECT CAST(${person2Id} AS BIGINT) FROM person WHERE id = ${personId}", person2ID, personID),
			stmt(`INSERT INTO knows (src, dst)
SELECT a.uid, b.uid FROM person a, person b
WHERE a.id = ${personId} AND b.id = ${person2Id}`, personID, person2ID),
			stmt("UPDATE person SET num_friends = num_friends + 1 WHERE id = ${personId}", personID),
		),
		intent.LURead: query(stmt(`
SELECT (SELECT COUNT(*) FROM knows k WHERE k.src = p.uid) AS "numKnowsEdges",
       p.num_friends AS "numFriendsProp"
FROM person p WHERE p.id = ${personId}`, personID)),

		intent.WSInit: exec(
			insertPersons("id", "1", "2", "3", "4"),
			stmt("INSERT INTO forum (id) VALUES (1), (2), (3)"),
		),
		intent.WSModerators: query(stmt(`
SELECT COUNT(h.person_uid) AS "modCount"
FROM forum f LEFT JOIN has_moderator h ON h.forum_uid = f.uid
WHERE f.id = ${forumId}
GROUP BY f.uid`, forumID)),
		intent.WSAddModerator: exec(stmt(`
INSERT INTO has_moderator (forum_uid, person_uid)
SELECT f.uid, p.uid FROM forum f, person p
WHERE f.id = ${forumId} AND p.id = ${personId}`, forumID, personID)),
		intent.WSViolations: query(stmt(`
SELECT f.id AS "forumId", COUNT(*) AS "modCount"
FROM forum f JOIN has_moderator h ON h.forum_uid = f.uid
GROUP BY f.uid, f.id
HAVING COUNT(*) > 1
ORDER BY f.id`)),
	}
}

// Builders renders every step for dialect d.
func Builders(d Dialect) txn.Builders[Script] {
	out := txn.Builders[Script]{}
	for step, s := range steps() {
		out[step] = s.render(d.Placeholder)
	}
	return out
}
