package admission_test

import (
	"context"
	"database/sql"
	"testing"

	"passgate/src-server/model"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// newTestDB opens a private in-memory database. A single connection keeps
// every goroutine on the same memory database.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	rawDB, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	rawDB.SetMaxOpenConns(1)
	bundb := bun.NewDB(rawDB, sqlitedialect.New())
	t.Cleanup(func() { bundb.Close() })

	if err := model.CreateSchema(context.Background(), bundb); err != nil {
		t.Fatal(err)
	}
	return bundb
}

func countEntries(t *testing.T, db *bun.DB) int {
	t.Helper()
	n, err := db.NewSelect().Model((*model.AttendanceEntry)(nil)).Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// sequenceTokens hands out the given tokens in order, then repeats the last.
func sequenceTokens(tokens ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		tok := tokens[i]
		if i < len(tokens)-1 {
			i++
		}
		return tok, nil
	}
}
