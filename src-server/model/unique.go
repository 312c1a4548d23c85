package model

import "strings"

// sqlite reports unique index violations as
// "UNIQUE constraint failed: <table>.<col>[, <table>.<col>]"
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
