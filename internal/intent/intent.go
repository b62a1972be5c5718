// Package intent names the backend-neutral steps every adapter renders and
// the normalized row keys each read step yields.
package intent

// Step identifies one query or mutation shape.
type Step string

// Steps, grouped by scenario.
const (
	AtomicityInit        Step = "atomicity.init"
	AtomicityCommit      Step = "atomicity.commit"
	AtomicityAppendEmail Step = "atomicity.append_email"
	AtomicityLookup      Step = "atomicity.lookup"
	AtomicityCreate      Step = "atomicity.create"
	AtomicityCheck       Step = "atomicity.check"

	G0Init   Step = "g0.init"
	G0Lookup Step = "g0.lookup"
	G0Append Step = "g0.append"
	G0Check  Step = "g0.check"

	G1aInit   Step = "g1a.init"
	G1aLookup Step = "g1a.lookup"
	G1aWrite  Step = "g1a.write"
	G1aRead   Step = "g1a.read"

	G1bInit      Step = "g1b.init"
	G1bWriteEven Step = "g1b.write_even"
	G1bWriteOdd  Step = "g1b.write_odd"
	G1bRead      Step = "g1b.read"

	G1cInit  Step = "g1c.init"
	G1cWrite Step = "g1c.write"
	G1cRead  Step = "g1c.read"

	IMPInit      Step = "imp.init"
	IMPIncrement Step = "imp.increment"
	IMPRead      Step = "imp.read"

	PMPInit  Step = "pmp.init"
	PMPLike  Step = "pmp.like"
	PMPCount Step = "pmp.count"

	OTVInit      Step = "otv.init"
	OTVIncrement Step = "otv.increment"
	OTVRead      Step = "otv.read"

	FRInit      Step = "fr.init"
	FRIncrement Step = "fr.increment"
	FRRead      Step = "fr.read"

	LUInit      Step = "lu.init"
	LUIncrement Step = "lu.increment"
	LURead      Step = "lu.read"

	WSInit         Step = "ws.init"
	WSModerators   Step = "ws.moderators"
	WSAddModerator Step = "ws.add_moderator"
	WSViolations   Step = "ws.violations"
)

// Row keys produced by read steps. Keys ending in Ref hold backend internal
// identifiers that are only valid inside the transaction that read them.
const (
	KeyRef              = "ref"
	KeyP1Ref            = "p1Ref"
	KeyP2Ref            = "p2Ref"
	KeyKRef             = "kRef"
	KeyNumPersons       = "numPersons"
	KeyNumNames         = "numNames"
	KeyNumEmails        = "numEmails"
	KeyP1VersionHistory = "p1VersionHistory"
	KeyKVersionHistory  = "kVersionHistory"
	KeyP2VersionHistory = "p2VersionHistory"
	KeyPVersion         = "pVersion"
	KeyPerson2Version   = "person2Version"
	KeyVersion          = "version"
	KeyLikes            = "likes"
	KeyVersions         = "versions"
	KeyNumKnowsEdges    = "numKnowsEdges"
	KeyNumFriendsProp   = "numFriendsProp"
	KeyModCount         = "modCount"
	KeyForumID          = "forumId"
)

// CycleLength is the number of persons on the OTV and FR knows-cycle.
const CycleLength = 4

// All lists every step in catalog order.
func All() []Step {
	return []Step{
		AtomicityInit, AtomicityCommit, AtomicityAppendEmail, AtomicityLookup, AtomicityCreate, AtomicityCheck,
		G0Init, G0Lookup, G0Append, G0Check,
		G1aInit, G1aLookup, G1aWrite, G1aRead,
		G1bInit, G1bWriteEven, G1bWriteOdd, G1bRead,
		G1cInit, G1cWrite, G1cRead,
		IMPInit, IMPIncrement, IMPRead,
		PMPInit, PMPLike, PMPCount,
		OTVInit, OTVIncrement, OTVRead,
		FRInit, FRIncrement, FRRead,
		LUInit, LUIncrement, LURead,
		WSInit, WSModerators, WSAddModerator, WSViolations,
	}
}
