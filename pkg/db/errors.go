package db

import "strings"

// IsUniqueViolation reports whether err looks like a Postgres unique
// violation. With a constraintName it matches that specific index;
// without one it matches any duplicate-key failure.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if constraintName != "" {
		return strings.Contains(err.Error(), constraintName)
	}
	return strings.Contains(err.Error(), "duplicate key value")
}
