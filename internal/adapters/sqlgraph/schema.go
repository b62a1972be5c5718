package sqlgraph

import (
	"fmt"
	"strings"
)

// Tables in creation order. Persons, posts and forums have an external id
// and a surrogate uid; relationships reference uids.
var tables = []struct {
	name    string
	columns string
}{
	{"person", "uid %s, id BIGINT NOT NULL UNIQUE, name TEXT, version BIGINT, version_history TEXT, num_friends BIGINT"},
	{"person_email", "person_uid BIGINT NOT NULL, email TEXT NOT NULL"},
	{"knows", "uid %s, src BIGINT NOT NULL, dst BIGINT NOT NULL, since TEXT, version_history TEXT"},
	{"post", "uid %s, id BIGINT NOT NULL UNIQUE"},
	{"likes", "person_uid BIGINT NOT NULL, post_uid BIGINT NOT NULL"},
	{"forum", "uid %s, id BIGINT NOT NULL UNIQUE"},
	{"has_moderator", "forum_uid BIGINT NOT NULL, person_uid BIGINT NOT NULL"},
}

var indexes = []string{
	"CREATE INDEX knows_src ON knows (src)",
	"CREATE INDEX likes_post ON likes (post_uid)",
	"CREATE INDEX has_moderator_forum ON has_moderator (forum_uid)",
}

// resetStatements drops and recreates every table.
func resetStatements(d Dialect) []string {
	out := make([]string, 0, 2*len(tables)+len(indexes))
	for i := len(tables) - 1; i >= 0; i-- {
		out = append(out, "DROP TABLE IF EXISTS "+tables[i].name)
	}
	for _, t := range tables {
		cols := t.columns
		if strings.Contains(cols, "%s") {
			cols = fmt.Sprintf(cols, d.Key)
		}
		out = append(out, "CREATE TABLE "+t.name+" ("+cols+")")
	}
	return append(out, indexes...)
}
