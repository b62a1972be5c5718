package api

// Result keys returned by catalog operations.
const (
	ResultNumPersons       = "numPersons"
	ResultNumNames         = "numNames"
	ResultNumEmails        = "numEmails"
	ResultP1VersionHistory = "p1VersionHistory"
	ResultKVersionHistory  = "kVersionHistory"
	ResultP2VersionHistory = "p2VersionHistory"
	ResultPVersion         = "pVersion"
	ResultPerson2Version   = "person2Version"
	ResultFirstRead        = "firstRead"
	ResultSecondRead       = "secondRead"
	ResultNumKnowsEdges    = "numKnowsEdges"
	ResultNumFriendsProp   = "numFriendsProp"
	ResultForumID          = "forumId"
	ResultModCount         = "modCount"
)

// Result is the decoded outcome of one operation call. Values are int64,
// string, or []any of those. Operations without a signal return an empty,
// non-nil Result.
type Result map[string]any

// Int returns key as int64 when present.
func (r Result) Int(key string) (int64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// List returns key as a slice when present.
func (r Result) List(key string) ([]any, bool) {
	v, ok := r[key]
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}
