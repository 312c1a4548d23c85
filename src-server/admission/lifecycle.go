package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"passgate/src-server/apperr"
	"passgate/src-server/model"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrTokenGeneratorExhausted means every attempt within the retry bound
// produced a token that was already taken. It points at a broken generator or
// a misconfigured attempt limit, not at a transient condition.
var ErrTokenGeneratorExhausted = errors.New("token generator exhausted")

// Lifecycle issues, rotates and revokes passes.
type Lifecycle struct {
	*deps
}

func NewLifecycle(db *bun.DB, opts ...Option) *Lifecycle {
	return &Lifecycle{deps: newDeps(db, opts)}
}

// Register issues a new pass for (eventID, holderID). The store's partial
// unique index rejects a second non-revoked pass for the same pair.
func (l *Lifecycle) Register(ctx context.Context, eventID, holderID string) (*model.Pass, error) {
	const op = "Register"
	eventID, holderID = strings.TrimSpace(eventID), strings.TrimSpace(holderID)
	if eventID == "" || holderID == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, op, "eventId and holderId are required")
	}

	for attempt := 1; attempt <= l.maxTokenAttempts; attempt++ {
		token, err := l.newToken()
		if err != nil {
			return nil, apperr.Storage(op, fmt.Errorf("generate token: %w", err))
		}
		now := l.unixNow()
		pass := &model.Pass{
			ID:        uuid.NewString(),
			EventID:   eventID,
			HolderID:  holderID,
			Token:     token,
			Status:    model.PASS_STATUS_ACTIVE,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}

		start := time.Now()
		err = pass.Insert(ctx, l.db)
		l.metric.ObserveWrite(time.Since(start))
		switch {
		case err == nil:
			l.metric.ObserveLifecycle("register")
			slog.Info("pass registered", "pass", pass.ID, "event", eventID, "holder", holderID)
			return pass, nil
		case errors.Is(err, model.ErrTokenTaken):
			slog.Warn("pass token collision, retrying", "attempt", attempt)
			continue
		case errors.Is(err, model.ErrActivePassExists):
			return nil, apperr.New(apperr.KindConflict, op, "already registered")
		default:
			return nil, apperr.Storage(op, err)
		}
	}

	slog.Error("can't generate a unique pass token", "attempts", l.maxTokenAttempts)
	return nil, apperr.Storage(op, ErrTokenGeneratorExhausted)
}

// Reissue rotates the token of an active pass, bumps its version and clears
// its check-in. The previous token stops resolving immediately. Revoked
// passes stay revoked and fail with Forbidden.
func (l *Lifecycle) Reissue(ctx context.Context, passID string) (*model.Pass, error) {
	const op = "Reissue"
	pass, err := l.load(ctx, op, passID)
	if err != nil {
		return nil, err
	}
	if pass.State() == model.PASS_STATE_REVOKED {
		return nil, apperr.New(apperr.KindForbidden, op, "pass is revoked")
	}

	for attempt := 1; attempt <= l.maxTokenAttempts; attempt++ {
		token, err := l.newToken()
		if err != nil {
			return nil, apperr.Storage(op, fmt.Errorf("generate token: %w", err))
		}

		start := time.Now()
		rotated, err := pass.Rotate(ctx, l.db, token, l.unixNow())
		l.metric.ObserveWrite(time.Since(start))
		switch {
		case errors.Is(err, model.ErrTokenTaken):
			slog.Warn("pass token collision, retrying", "attempt", attempt, "pass", pass.ID)
			continue
		case err != nil:
			return nil, apperr.Storage(op, err)
		}

		// reload either way: the row may have been revoked or deleted since the first read
		current, err := l.load(ctx, op, passID)
		if err != nil {
			return nil, err
		}
		if !rotated {
			if current.State() == model.PASS_STATE_REVOKED {
				return nil, apperr.New(apperr.KindForbidden, op, "pass is revoked")
			}
			return nil, apperr.New(apperr.KindConflict, op, "pass changed concurrently")
		}
		l.metric.ObserveLifecycle("reissue")
		slog.Info("pass reissued", "pass", current.ID, "version", current.Version)
		return current, nil
	}

	slog.Error("can't generate a unique pass token", "attempts", l.maxTokenAttempts, "pass", pass.ID)
	return nil, apperr.Storage(op, ErrTokenGeneratorExhausted)
}

// Revoke permanently invalidates a pass. Revoking twice is a no-op success.
func (l *Lifecycle) Revoke(ctx context.Context, passID string) (*model.Pass, error) {
	const op = "Revoke"
	pass, err := l.load(ctx, op, passID)
	if err != nil {
		return nil, err
	}
	if pass.State() == model.PASS_STATE_REVOKED {
		return pass, nil
	}

	start := time.Now()
	err = pass.Revoke(ctx, l.db, l.unixNow())
	l.metric.ObserveWrite(time.Since(start))
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	current, err := l.load(ctx, op, passID)
	if err != nil {
		return nil, err
	}
	l.metric.ObserveLifecycle("revoke")
	slog.Info("pass revoked", "pass", current.ID)
	return current, nil
}

// Get returns a single pass.
func (l *Lifecycle) Get(ctx context.Context, passID string) (*model.Pass, error) {
	return l.load(ctx, "GetPass", passID)
}

// ForHolder lists every pass of a holder, newest first.
func (l *Lifecycle) ForHolder(ctx context.Context, holderID string) ([]model.Pass, error) {
	const op = "ForHolder"
	if strings.TrimSpace(holderID) == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, op, "holderId is required")
	}
	start := time.Now()
	passes, err := model.ListPassesByHolder(ctx, l.db, holderID)
	l.metric.ObserveRead(time.Since(start))
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	return passes, nil
}

func (l *Lifecycle) load(ctx context.Context, op, passID string) (*model.Pass, error) {
	if strings.TrimSpace(passID) == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, op, "passId is required")
	}
	start := time.Now()
	pass, err := model.GetPassByID(ctx, l.db, passID)
	l.metric.ObserveRead(time.Since(start))
	switch {
	case model.IsNoRows(err):
		return nil, apperr.New(apperr.KindNotFound, op, "pass not found")
	case err != nil:
		return nil, apperr.Storage(op, err)
	}
	return pass, nil
}
