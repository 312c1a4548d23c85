package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

func CreateSchema(ctx context.Context, db *bun.DB) error {
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*Pass)(nil),
			(*AttendanceEntry)(nil),
			(*AttendanceAudit)(nil),
			(*User)(nil),
		} {
			if _, err := tx.
				NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}

		// at most one non-revoked pass per (event, holder)
		if _, err := tx.NewCreateIndex().
			Model((*Pass)(nil)).
			Unique().
			IfNotExists().
			Index("passes_active_holder_idx").
			Column("event_id", "holder_id").
			Where("status = ?", PASS_STATUS_ACTIVE).
			Exec(ctx); err != nil {
			return err
		}

		for _, idx := range []struct {
			name    string
			model   interface{}
			columns []string
		}{
			{"passes_event_idx", (*Pass)(nil), []string{"event_id"}},
			{"passes_holder_idx", (*Pass)(nil), []string{"holder_id"}},
			{"attendance_entries_event_idx", (*AttendanceEntry)(nil), []string{"event_id", "deleted"}},
			{"attendance_audits_entry_idx", (*AttendanceAudit)(nil), []string{"entry_id"}},
		} {
			if _, err := tx.NewCreateIndex().
				Model(idx.model).
				IfNotExists().
				Index(idx.name).
				Column(idx.columns...).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("CreateSchema: %w", err)
	}

	return nil
}
