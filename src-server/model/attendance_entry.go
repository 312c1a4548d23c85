package model

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type Outcome string

const (
	OUTCOME_CHECKED_IN = Outcome("checked-in")
	OUTCOME_DENIED     = Outcome("denied")
)

func (o Outcome) Valid() bool {
	return o == OUTCOME_CHECKED_IN || o == OUTCOME_DENIED
}

type DenialReason string

const (
	DENIAL_REASON_INVALID_TOKEN = DenialReason("invalid_token")
	DENIAL_REASON_REVOKED       = DenialReason("revoked")
	DENIAL_REASON_ALREADY_USED  = DenialReason("already_used")
)

func (r DenialReason) Valid() bool {
	switch r {
	case DENIAL_REASON_INVALID_TOKEN, DENIAL_REASON_REVOKED, DENIAL_REASON_ALREADY_USED:
		return true
	}
	return false
}

// One scan outcome. Event and holder are NULL when the token did not resolve.
type AttendanceEntry struct {
	bun.BaseModel `bun:"table:attendance_entries"`

	ID        string       `bun:"id,pk,notnull"`
	EventID   string       `bun:"event_id,nullzero"`
	HolderID  string       `bun:"holder_id,nullzero"`
	PassID    string       `bun:"pass_id,nullzero"`
	Outcome   Outcome      `bun:"outcome,notnull,type:varchar"`
	Reason    DenialReason `bun:"reason,nullzero,type:varchar"`
	Note      string       `bun:"note,notnull"`
	ScannedBy string       `bun:"scanned_by,nullzero"`
	Deleted   bool         `bun:"deleted,notnull"`
	CreatedAt int64        `bun:"created_at,notnull"`
	UpdatedAt int64        `bun:"updated_at,notnull"`

	Audits []*AttendanceAudit `bun:"rel:has-many,join:id=entry_id"`
}

func (a *AttendanceEntry) Insert(ctx context.Context, db bun.IDB) error {
	if a.ID == "" {
		return fmt.Errorf("(*AttendanceEntry).Insert: id is required")
	}
	if !a.Outcome.Valid() {
		return fmt.Errorf("(*AttendanceEntry).Insert: invalid outcome %q", a.Outcome)
	}
	if _, err := db.NewInsert().Model(a).Exec(ctx); err != nil {
		return fmt.Errorf("(*AttendanceEntry).Insert: %w", err)
	}
	return nil
}

// Update writes back the administrative fields of the entry.
func (a *AttendanceEntry) Update(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewUpdate().
		Model(a).
		Column("outcome", "reason", "note", "deleted", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return fmt.Errorf("(*AttendanceEntry).Update: %w", err)
	}
	return nil
}

// Returns sql.ErrNoRows (wrapped) when the id does not resolve. Audits are
// loaded oldest first.
func GetAttendanceEntry(ctx context.Context, db bun.IDB, id string) (*AttendanceEntry, error) {
	a := new(AttendanceEntry)
	if err := db.NewSelect().
		Model(a).
		Where("?TableAlias.id = ?", id).
		Relation("Audits", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("id ASC")
		}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetAttendanceEntry: %w", err)
	}
	return a, nil
}

// Newest first.
func ListAttendanceEntriesByEvent(ctx context.Context, db bun.IDB, eventID string, includeDeleted bool) ([]AttendanceEntry, error) {
	entries := make([]AttendanceEntry, 0)
	q := db.NewSelect().
		Model(&entries).
		Where("event_id = ?", eventID)
	if !includeDeleted {
		q = q.Where("deleted = ?", false)
	}
	if err := q.
		OrderExpr("created_at DESC, rowid DESC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListAttendanceEntriesByEvent: %w", err)
	}
	return entries, nil
}

func CountDenialsByEvent(ctx context.Context, db bun.IDB, eventID string) (int, error) {
	n, err := db.NewSelect().
		Model((*AttendanceEntry)(nil)).
		Where("event_id = ?", eventID).
		Where("outcome = ?", OUTCOME_DENIED).
		Where("deleted = ?", false).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountDenialsByEvent: %w", err)
	}
	return n, nil
}
