package neo4j

import (
	"strings"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/intent"
	"pkt.systems/isocheck/internal/querytext"
	"pkt.systems/isocheck/internal/txn"
)

// Statement is one Cypher query with its bound parameters.
type Statement struct {
	Cypher string
	Params map[string]any
}

func cypher(src string, slots ...querytext.Slot) txn.BuildFunc[Statement] {
	t := querytext.MustNew(strings.TrimSpace(src), slots...)
	return func(p api.Params) (Statement, error) {
		text, args, err := t.Named(p)
		if err != nil {
			return Statement{}, err
		}
		return Statement{Cypher: text, Params: args}, nil
	}
}

var (
	personID  = querytext.IntSlot(api.ParamPersonID)
	person1ID = querytext.IntSlot(api.ParamPerson1ID)
	person2ID = querytext.IntSlot(api.ParamPerson2ID)
	postID    = querytext.IntSlot(api.ParamPostID)
	forumID   = querytext.IntSlot(api.ParamForumID)
)

// Neo4j refuses mixed-type list properties, so history entries are stored as
// text and integers are recovered on decode. G1c writes the id as a version
// and keeps it an integer.
var (
	historyEntry = querytext.StringSlot(api.ParamTransactionID)
	versionTxID  = querytext.IntSlot(api.ParamTransactionID)
)

const cycleFixture = `
CREATE (p1:Person {id: 1, version: 0})-[:KNOWS]->(p2:Person {id: 2, version: 0})-[:KNOWS]->
       (p3:Person {id: 3, version: 0})-[:KNOWS]->(p4:Person {id: 4, version: 0})-[:KNOWS]->(p1)`

const cycleMatch = `MATCH (p1:Person {id: ${personId}})-[:KNOWS]->(p2)-[:KNOWS]->(p3)-[:KNOWS]->(p4)-[:KNOWS]->(p1)`

// Builders returns the Cypher rendering of every step.
func Builders() txn.Builders[Statement] {
	return txn.Builders[Statement]{
		intent.AtomicityInit: cypher(`
CREATE (:Person {id: 1, name: 'Alice', emails: ['alice@aol.com']}),
       (:Person {id: 2, name: 'Bob', emails: ['bob@hotmail.com', 'bobby@yahoo.com']})`),
		intent.AtomicityCommit: cypher(`
MATCH (p1:Person {id: ${person1Id}})
CREATE (p2:Person)
CREATE (p1)-[k:KNOWS]->(p2)
SET p1.emails = p1.emails + [${newEmail}],
    p2.id = ${person2Id},
    k.since = ${since}`,
			person1ID, person2ID,
			querytext.StringSlot(api.ParamNewEmail),
			querytext.StringSlot(api.ParamSince)),
		intent.AtomicityAppendEmail: cypher(`
MATCH (p1:Person {id: ${person1Id}})
SET p1.emails = p1.emails + [${newEmail}]`,
			person1ID, querytext.StringSlot(api.ParamNewEmail)),
		intent.AtomicityLookup: cypher(`MATCH (p2:Person {id: ${person2Id}}) RETURN id(p2) AS ref`, person2ID),
		intent.AtomicityCreate: cypher(`CREATE (:Person {id: ${person2Id}, emails: []})`, person2ID),
		intent.AtomicityCheck: cypher(`
MATCH (p:Person)
RETURN count(p) AS numPersons, count(p.name) AS numNames, sum(size(p.emails)) AS numEmails`),

		intent.G0Init: cypher(`CREATE (:Person {id: 1, versionHistory: ['0']})-[:KNOWS {versionHistory: ['0']}]->(:Person {id: 2, versionHistory: ['0']})`),
		intent.G0Lookup: cypher(`
MATCH (p1:Person {id: ${person1Id}})-[k:KNOWS]->(p2:Person {id: ${person2Id}})
RETURN id(p1) AS p1Ref, id(k) AS kRef, id(p2) AS p2Ref`,
			person1ID, person2ID),
		intent.G0Append: cypher(`
MATCH (p1:Person)-[k:KNOWS]->(p2:Person)
WHERE id(p1) = ${p1Ref} AND id(k) = ${kRef} AND id(p2) = ${p2Ref}
SET p1.versionHistory = p1.versionHistory + [${transactionId}],
    p2.versionHistory = p2.versionHistory + [${transactionId}],
    k.versionHistory = k.versionHistory + [${transactionId}]`,
			querytext.RefSlot(intent.KeyP1Ref),
			querytext.RefSlot(intent.KeyKRef),
			querytext.RefSlot(intent.KeyP2Ref),
			historyEntry),
		intent.G0Check: cypher(`
MATCH (p1:Person {id: ${person1Id}})-[k:KNOWS]->(p2:Person {id: ${person2Id}})
RETURN p1.versionHistory AS p1VersionHistory,
       k.versionHistory AS kVersionHistory,
       p2.versionHistory AS p2VersionHistory`,
			person1ID, person2ID),

		intent.G1aInit:   cypher(`CREATE (:Person {id: 1, version: 1})`),
		intent.G1aLookup: cypher(`MATCH (p:Person {id: ${personId}}) RETURN id(p) AS ref`, personID),
		intent.G1aWrite:  cypher(`MATCH (p:Person) WHERE id(p) = ${ref} SET p.version = 2`, querytext.RefSlot(intent.KeyRef)),
		intent.G1aRead:   cypher(`MATCH (p:Person {id: ${personId}}) RETURN p.version AS pVersion`, personID),

		intent.G1bInit:      cypher(`CREATE (:Person {id: 1, version: 99})`),
		intent.G1bWriteEven: cypher(`MATCH (p:Person {id: ${personId}}) SET p.version = ${even}`, personID, querytext.IntSlot(api.ParamEven)),
		intent.G1bWriteOdd:  cypher(`MATCH (p:Person {id: ${personId}}) SET p.version = ${odd}`, personID, querytext.IntSlot(api.ParamOdd)),
		intent.G1bRead:      cypher(`MATCH (p:Person {id: ${personId}}) RETURN p.version AS pVersion`, personID),

		intent.G1cInit:  cypher(`CREATE (:Person {id: 1, version: 0}), (:Person {id: 2, version: 0})`),
		intent.G1cWrite: cypher(`MATCH (p1:Person {id: ${person1Id}}) SET p1.version = ${transactionId}`, person1ID, versionTxID),
		intent.G1cRead:  cypher(`MATCH (p2:Person {id: ${person2Id}}) RETURN p2.version AS person2Version`, person2ID),

		intent.IMPInit:      cypher(`CREATE (:Person {id: 1, version: 1})`),
		intent.IMPIncrement: cypher(`MATCH (p:Person {id: ${personId}}) SET p.version = p.version + 1`, personID),
		intent.IMPRead:      cypher(`MATCH (p:Person {id: ${personId}}) RETURN p.version AS version`, personID),

		intent.PMPInit: cypher(`CREATE (:Person {id: 1}), (:Post {id: 1})`),
		intent.PMPLike: cypher(`
MATCH (pe:Person {id: ${personId}}), (po:Post {id: ${postId}})
CREATE (pe)-[:LIKES]->(po)`,
			personID, postID),
		intent.PMPCount: cypher(`
MATCH (po:Post {id: ${postId}})
OPTIONAL MATCH (po)<-[l:LIKES]-(:Person)
WITH po, count(l) AS likes
RETURN likes`,
			postID),

		intent.OTVInit: cypher(cycleFixture),
		intent.OTVIncrement: cypher(cycleMatch+`
SET p1.version = p1.version + 1,
    p2.version = p2.version + 1,
    p3.version = p3.version + 1,
    p4.version = p4.version + 1`,
			personID),
		intent.OTVRead: cypher(cycleMatch+`
RETURN [p1.version, p2.version, p3.version, p4.version] AS versions`,
			personID),

		intent.FRInit: cypher(cycleFixture),
		intent.FRIncrement: cypher(`
MATCH path = (n:Person {id: ${personId}})-[:KNOWS*..4]->(n)
UNWIND nodes(path) AS person
WITH DISTINCT person
SET person.version = person.version + 1`,
			personID),
		intent.FRRead: cypher(`
MATCH path = (n:Person {id: ${personId}})-[:KNOWS*..4]->(n)
RETURN [p IN nodes(path)[0..-1] | p.version] AS versions`,
			personID),

		intent.LUInit: cypher(`CREATE (:Person {id: 1, numFriends: 0})`),
		intent.LUIncrement: cypher(`
MATCH (p1:Person {id: ${personId}})
CREATE (p1)-[:KNOWS]->(:Person {id: ${person2Id}})
SET p1.numFriends = p1.numFriends + 1`,
			personID, person2ID),
		intent.LURead: cypher(`
MATCH (p:Person {id: ${personId}})
OPTIONAL MATCH (p)-[k:KNOWS]->()
WITH p, count(k) AS numKnowsEdges
RETURN numKnowsEdges, p.numFriends AS numFriendsProp`,
			personID),

		intent.WSInit: cypher(`
CREATE (:Person {id: 1}), (:Person {id: 2}), (:Person {id: 3}), (:Person {id: 4}),
       (:Forum {id: 1}), (:Forum {id: 2}), (:Forum {id: 3})`),
		intent.WSModerators: cypher(`
MATCH (f:Forum {id: ${forumId}})
OPTIONAL MATCH (f)-[h:HAS_MODERATOR]->(:Person)
WITH f, count(h) AS modCount
RETURN modCount`,
			forumID),
		intent.WSAddModerator: cypher(`
MATCH (f:Forum {id: ${forumId}}), (p:Person {id: ${personId}})
CREATE (f)-[:HAS_MODERATOR]->(p)`,
			forumID, personID),
		intent.WSViolations: cypher(`
MATCH (f:Forum)-[h:HAS_MODERATOR]->(:Person)
WITH f, count(h) AS modCount
WHERE modCount > 1
RETURN f.id AS forumId, modCount
ORDER BY forumId`),
	}
}
