package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize adapts a `?`-placeholder query built by gendry to the target bind
// type, rewriting MySQL style `LIMIT ?, ?` for drivers that do not accept it.
func Finalize(bindType int, query string, args []interface{}) (string, []interface{}) {
	if bindType == sqlx.QUESTION || bindType == sqlx.UNKNOWN {
		return query, args
	}
	loc := limitRegex.FindStringIndex(query)
	if loc != nil {
		prefix := query[:loc[0]]
		qCount := strings.Count(prefix, "?")
		if qCount+1 < len(args) {
			args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(bindType, query), args
}
