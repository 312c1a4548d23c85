package model

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Audit rows are insert-only; the autoincrement id gives their order.
type AttendanceAudit struct {
	bun.BaseModel `bun:"table:attendance_audits"`

	ID      int64  `bun:"id,pk,autoincrement"`
	EntryID string `bun:"entry_id,notnull"`
	At      int64  `bun:"at,notnull"`
	ActorID string `bun:"actor_id,notnull"`
	Note    string `bun:"note,notnull"`

	Entry *AttendanceEntry `bun:"rel:belongs-to,join:entry_id=id"`
}

func (a *AttendanceAudit) Append(ctx context.Context, db bun.IDB) error {
	if a.EntryID == "" {
		return fmt.Errorf("(*AttendanceAudit).Append: entry id is required")
	}
	if _, err := db.NewInsert().Model(a).Exec(ctx); err != nil {
		return fmt.Errorf("(*AttendanceAudit).Append: %w", err)
	}
	return nil
}
