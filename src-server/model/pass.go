package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

type PassStatus string

const (
	PASS_STATUS_ACTIVE  = PassStatus("active")
	PASS_STATUS_REVOKED = PassStatus("revoked")
)

// PassState is the tagged lifecycle state every admission decision switches on.
type PassState string

const (
	PASS_STATE_ACTIVE_UNUSED = PassState("active-unused")
	PASS_STATE_ACTIVE_USED   = PassState("active-used")
	PASS_STATE_REVOKED       = PassState("revoked")
)

var (
	// the generated token collided with an existing one, retry with a new token
	ErrTokenTaken = errors.New("pass token already taken")
	// a non-revoked pass already exists for the (event, holder) pair
	ErrActivePassExists = errors.New("active pass already exists")
)

// One admission credential for exactly one (event, holder) pair.
type Pass struct {
	bun.BaseModel `bun:"table:passes"`

	ID       string     `bun:"id,pk,notnull"`
	EventID  string     `bun:"event_id,notnull"`
	HolderID string     `bun:"holder_id,notnull"`
	Token    string     `bun:"token,notnull,unique"`
	Status   PassStatus `bun:"status,notnull,type:varchar"`
	Version  int        `bun:"version,notnull"` // starts at 1

	// unix seconds, NULL until the pass is consumed by a scan
	CheckedInAt int64 `bun:"checked_in_at,nullzero"`

	CreatedAt int64 `bun:"created_at,notnull"`
	UpdatedAt int64 `bun:"updated_at,notnull"`
}

func (p *Pass) State() PassState {
	switch {
	case p.Status == PASS_STATUS_REVOKED:
		return PASS_STATE_REVOKED
	case p.CheckedInAt != 0:
		return PASS_STATE_ACTIVE_USED
	default:
		return PASS_STATE_ACTIVE_UNUSED
	}
}

// Insert stores a new pass. Unique violations come back as ErrTokenTaken or
// ErrActivePassExists.
func (p *Pass) Insert(ctx context.Context, db bun.IDB) error {
	if p.ID == "" || p.Token == "" {
		return fmt.Errorf("(*Pass).Insert: id and token are required")
	}
	if _, err := db.NewInsert().Model(p).Exec(ctx); err != nil {
		switch {
		case isUniqueViolation(err, "passes.token"):
			return fmt.Errorf("(*Pass).Insert: %w", ErrTokenTaken)
		case isUniqueViolation(err, "passes.holder_id"):
			return fmt.Errorf("(*Pass).Insert: %w", ErrActivePassExists)
		}
		return fmt.Errorf("(*Pass).Insert: %w", err)
	}
	return nil
}

// Returns sql.ErrNoRows (wrapped) when the id does not resolve.
func GetPassByID(ctx context.Context, db bun.IDB, id string) (*Pass, error) {
	p := new(Pass)
	if err := db.NewSelect().
		Model(p).
		Where("id = ?", id).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetPassByID: %w", err)
	}
	return p, nil
}

// Returns sql.ErrNoRows (wrapped) when no pass currently carries the token.
func GetPassByToken(ctx context.Context, db bun.IDB, token string) (*Pass, error) {
	p := new(Pass)
	if err := db.NewSelect().
		Model(p).
		Where("token = ?", token).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetPassByToken: %w", err)
	}
	return p, nil
}

func ListPassesByHolder(ctx context.Context, db bun.IDB, holderID string) ([]Pass, error) {
	passes := make([]Pass, 0)
	if err := db.NewSelect().
		Model(&passes).
		Where("holder_id = ?", holderID).
		OrderExpr("created_at DESC, id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListPassesByHolder: %w", err)
	}
	return passes, nil
}

// ClaimCheckIn sets checked_in_at only if the pass is active and unused.
// Exactly one concurrent caller gets true for a given pass.
func (p *Pass) ClaimCheckIn(ctx context.Context, db bun.IDB, now int64) (bool, error) {
	res, err := db.NewUpdate().
		Model((*Pass)(nil)).
		Set("checked_in_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", p.ID).
		Where("status = ?", PASS_STATUS_ACTIVE).
		Where("checked_in_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("(*Pass).ClaimCheckIn: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("(*Pass).ClaimCheckIn: %w", err)
	}
	if n == 1 {
		p.CheckedInAt = now
		p.UpdatedAt = now
		return true, nil
	}
	return false, nil
}

// Rotate swaps in a new token, bumps the version and clears the check-in of
// an active pass. It reports false when the pass is missing or revoked.
func (p *Pass) Rotate(ctx context.Context, db bun.IDB, token string, now int64) (bool, error) {
	res, err := db.NewUpdate().
		Model((*Pass)(nil)).
		Set("token = ?", token).
		Set("version = version + 1").
		Set("checked_in_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", p.ID).
		Where("status = ?", PASS_STATUS_ACTIVE).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err, "passes.token") {
			return false, fmt.Errorf("(*Pass).Rotate: %w", ErrTokenTaken)
		}
		return false, fmt.Errorf("(*Pass).Rotate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("(*Pass).Rotate: %w", err)
	}
	return n == 1, nil
}

// Revoke moves an active pass to revoked. Already revoked passes are left as is.
func (p *Pass) Revoke(ctx context.Context, db bun.IDB, now int64) error {
	if _, err := db.NewUpdate().
		Model((*Pass)(nil)).
		Set("status = ?", PASS_STATUS_REVOKED).
		Set("updated_at = ?", now).
		Where("id = ?", p.ID).
		Where("status = ?", PASS_STATUS_ACTIVE).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Pass).Revoke: %w", err)
	}
	return nil
}

type PassCounts struct {
	Total    int
	CheckIns int
	Revoked  int
}

func CountPassesByEvent(ctx context.Context, db bun.IDB, eventID string) (PassCounts, error) {
	var counts PassCounts
	var err error
	base := func() *bun.SelectQuery {
		return db.NewSelect().Model((*Pass)(nil)).Where("event_id = ?", eventID)
	}
	if counts.Total, err = base().Count(ctx); err != nil {
		return counts, fmt.Errorf("CountPassesByEvent: total: %w", err)
	}
	if counts.CheckIns, err = base().Where("checked_in_at IS NOT NULL").Count(ctx); err != nil {
		return counts, fmt.Errorf("CountPassesByEvent: check-ins: %w", err)
	}
	if counts.Revoked, err = base().Where("status = ?", PASS_STATUS_REVOKED).Count(ctx); err != nil {
		return counts, fmt.Errorf("CountPassesByEvent: revoked: %w", err)
	}
	return counts, nil
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
