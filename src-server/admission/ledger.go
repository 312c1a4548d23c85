package admission

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"passgate/src-server/apperr"
	"passgate/src-server/model"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Ledger owns attendance entries. Entries are never hard-deleted and their
// audit trail only grows.
type Ledger struct {
	*deps
}

func NewLedger(db *bun.DB, opts ...Option) *Ledger {
	return &Ledger{deps: newDeps(db, opts)}
}

// Amendment lists the fields an administrator wants to change. Nil means
// leave untouched. Reason only applies to an entry that ends up denied.
type Amendment struct {
	Outcome *model.Outcome
	Reason  *model.DenialReason
	Note    *string
}

// record appends one scan outcome. pass is nil when the token did not resolve.
func (l *Ledger) record(ctx context.Context, pass *model.Pass, outcome model.Outcome, reason model.DenialReason, actorID string) (*model.AttendanceEntry, error) {
	now := l.unixNow()
	entry := &model.AttendanceEntry{
		ID:        uuid.NewString(),
		Outcome:   outcome,
		Reason:    reason,
		ScannedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pass != nil {
		entry.EventID = pass.EventID
		entry.HolderID = pass.HolderID
		entry.PassID = pass.ID
	}

	start := time.Now()
	err := entry.Insert(ctx, l.db)
	l.metric.ObserveWrite(time.Since(start))
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Amend applies the provided fields and appends one audit record naming the
// actor and the change.
func (l *Ledger) Amend(ctx context.Context, entryID string, change Amendment, actorID string) (*model.AttendanceEntry, error) {
	const op = "Amend"
	if err := requireEntryAndActor(op, entryID, actorID); err != nil {
		return nil, err
	}
	if change.Outcome == nil && change.Reason == nil && change.Note == nil {
		return nil, apperr.New(apperr.KindInvalidRequest, op, "nothing to amend")
	}
	if change.Outcome != nil && !change.Outcome.Valid() {
		return nil, apperr.New(apperr.KindInvalidRequest, op, fmt.Sprintf("unknown outcome %q", *change.Outcome))
	}
	if change.Reason != nil && !change.Reason.Valid() {
		return nil, apperr.New(apperr.KindInvalidRequest, op, fmt.Sprintf("unknown reason %q", *change.Reason))
	}

	return l.mutate(ctx, op, entryID, func(entry *model.AttendanceEntry) (string, error) {
		outcome := entry.Outcome
		if change.Outcome != nil {
			outcome = *change.Outcome
		}
		if change.Reason != nil && outcome != model.OUTCOME_DENIED {
			return "", apperr.New(apperr.KindInvalidRequest, op, "a reason needs a denied outcome")
		}

		changes := make([]string, 0, 2)
		if change.Outcome != nil && *change.Outcome != entry.Outcome {
			changes = append(changes, fmt.Sprintf("outcome %s -> %s", entry.Outcome, *change.Outcome))
			entry.Outcome = *change.Outcome
			// a reason only describes a denial
			if entry.Outcome == model.OUTCOME_CHECKED_IN {
				entry.Reason = ""
			}
		}
		if change.Reason != nil && *change.Reason != entry.Reason {
			changes = append(changes, fmt.Sprintf("reason %q -> %q", entry.Reason, *change.Reason))
			entry.Reason = *change.Reason
		}
		if change.Note != nil {
			note := strings.TrimSpace(*change.Note)
			if note != entry.Note {
				changes = append(changes, fmt.Sprintf("note %q -> %q", entry.Note, note))
				entry.Note = note
			}
		}
		if len(changes) == 0 {
			return "amended, no change", nil
		}
		return "amended: " + strings.Join(changes, "; "), nil
	}, actorID)
}

// SoftDelete flags the entry as deleted. Repeating it keeps the entry deleted
// and still leaves an audit record.
func (l *Ledger) SoftDelete(ctx context.Context, entryID, actorID string) (*model.AttendanceEntry, error) {
	const op = "SoftDelete"
	if err := requireEntryAndActor(op, entryID, actorID); err != nil {
		return nil, err
	}
	return l.mutate(ctx, op, entryID, func(entry *model.AttendanceEntry) (string, error) {
		if entry.Deleted {
			return "soft-delete requested, already deleted", nil
		}
		entry.Deleted = true
		return "soft-deleted", nil
	}, actorID)
}

// Get returns an entry with its audit trail, soft-deleted or not.
func (l *Ledger) Get(ctx context.Context, entryID string) (*model.AttendanceEntry, error) {
	const op = "GetEntry"
	if strings.TrimSpace(entryID) == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, op, "entryId is required")
	}
	start := time.Now()
	entry, err := model.GetAttendanceEntry(ctx, l.db, entryID)
	l.metric.ObserveRead(time.Since(start))
	switch {
	case model.IsNoRows(err):
		return nil, apperr.New(apperr.KindNotFound, op, "entry not found")
	case err != nil:
		return nil, apperr.Storage(op, err)
	}
	return entry, nil
}

// ForEvent lists an event's entries newest first.
func (l *Ledger) ForEvent(ctx context.Context, eventID string, includeDeleted bool) ([]model.AttendanceEntry, error) {
	const op = "ForEvent"
	if strings.TrimSpace(eventID) == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, op, "eventId is required")
	}
	start := time.Now()
	entries, err := model.ListAttendanceEntriesByEvent(ctx, l.db, eventID, includeDeleted)
	l.metric.ObserveRead(time.Since(start))
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	return entries, nil
}

// mutate loads the entry, lets apply change it and describe the change, then
// writes the entry and its audit record in one transaction. An error from
// apply rolls the transaction back and is returned as is.
func (l *Ledger) mutate(ctx context.Context, op, entryID string, apply func(*model.AttendanceEntry) (string, error), actorID string) (*model.AttendanceEntry, error) {
	start := time.Now()
	err := l.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		entry, err := model.GetAttendanceEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		note, err := apply(entry)
		if err != nil {
			return err
		}
		now := l.unixNow()
		entry.UpdatedAt = now
		if err := entry.Update(ctx, tx); err != nil {
			return err
		}
		audit := &model.AttendanceAudit{
			EntryID: entry.ID,
			At:      now,
			ActorID: actorID,
			Note:    note,
		}
		return audit.Append(ctx, tx)
	})
	l.metric.ObserveWrite(time.Since(start))
	switch {
	case model.IsNoRows(err):
		return nil, apperr.New(apperr.KindNotFound, op, "entry not found")
	case apperr.KindOf(err) != apperr.KindUnknown:
		return nil, err
	case err != nil:
		return nil, apperr.Storage(op, err)
	}
	slog.Info("attendance entry changed", "op", op, "entry", entryID, "actor", actorID)
	return l.Get(ctx, entryID)
}

func requireEntryAndActor(op, entryID, actorID string) error {
	if strings.TrimSpace(entryID) == "" {
		return apperr.New(apperr.KindInvalidRequest, op, "entryId is required")
	}
	if strings.TrimSpace(actorID) == "" {
		return apperr.New(apperr.KindInvalidRequest, op, "actor is required")
	}
	return nil
}
