package admission

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"passgate/src-server/apperr"
	"passgate/src-server/model"

	"github.com/uptrace/bun"
)

// ScanOutcome is the decision for one presented token. Denials are outcomes,
// not errors.
type ScanOutcome struct {
	Outcome model.Outcome
	Reason  model.DenialReason
	// nil when the token did not resolve
	Pass  *model.Pass
	Entry *model.AttendanceEntry
}

func (o *ScanOutcome) Granted() bool {
	return o.Outcome == model.OUTCOME_CHECKED_IN
}

// Kind maps a denial onto the error taxonomy for transport. Granted scans
// yield the empty Kind.
func (o *ScanOutcome) Kind() apperr.Kind {
	switch o.Reason {
	case model.DENIAL_REASON_INVALID_TOKEN:
		return apperr.KindNotFound
	case model.DENIAL_REASON_REVOKED:
		return apperr.KindForbidden
	case model.DENIAL_REASON_ALREADY_USED:
		return apperr.KindAlreadyUsed
	}
	return ""
}

// Validator resolves presented tokens to grant or deny decisions.
type Validator struct {
	*deps
	ledger *Ledger
}

func NewValidator(db *bun.DB, ledger *Ledger, opts ...Option) *Validator {
	return &Validator{deps: newDeps(db, opts), ledger: ledger}
}

// Scan decides a presented token and writes exactly one ledger entry for it.
//
// When the grant committed but the ledger write failed, the granted outcome is
// returned together with a StorageError so the caller can reconcile.
func (v *Validator) Scan(ctx context.Context, token, actorID string) (*ScanOutcome, error) {
	const op = "Scan"
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, op, "qrToken is required")
	}

	out, err := v.decide(ctx, token)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	entry, err := v.ledger.record(ctx, out.Pass, out.Outcome, out.Reason, actorID)
	v.metric.ObserveScan(string(out.Outcome), string(out.Reason))
	if err != nil {
		slog.Error("scan decided but ledger write failed",
			"outcome", out.Outcome, "reason", out.Reason, "pass", passID(out.Pass), "error", err)
		return out, apperr.Storage(op, err)
	}
	out.Entry = entry

	slog.Info("scan decided", "outcome", out.Outcome, "reason", out.Reason, "pass", passID(out.Pass), "actor", actorID)
	return out, nil
}

// decide runs the state machine. The only pass mutation is the conditional
// claim, so two scans racing on one pass cannot both be granted.
func (v *Validator) decide(ctx context.Context, token string) (*ScanOutcome, error) {
	pass, err := v.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if pass == nil {
		return deny(nil, model.DENIAL_REASON_INVALID_TOKEN), nil
	}

	switch pass.State() {
	case model.PASS_STATE_REVOKED:
		return deny(pass, model.DENIAL_REASON_REVOKED), nil
	case model.PASS_STATE_ACTIVE_USED:
		return deny(pass, model.DENIAL_REASON_ALREADY_USED), nil
	}

	start := time.Now()
	claimed, err := pass.ClaimCheckIn(ctx, v.db, v.unixNow())
	v.metric.ObserveWrite(time.Since(start))
	if err != nil {
		return nil, err
	}
	if claimed {
		return &ScanOutcome{Outcome: model.OUTCOME_CHECKED_IN, Pass: pass}, nil
	}

	// lost the claim: someone consumed, revoked or reissued the pass in between
	current, err := v.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	switch {
	case current == nil:
		return deny(nil, model.DENIAL_REASON_INVALID_TOKEN), nil
	case current.State() == model.PASS_STATE_REVOKED:
		return deny(current, model.DENIAL_REASON_REVOKED), nil
	default:
		return deny(current, model.DENIAL_REASON_ALREADY_USED), nil
	}
}

// lookup returns nil, nil when no pass carries the token.
func (v *Validator) lookup(ctx context.Context, token string) (*model.Pass, error) {
	start := time.Now()
	pass, err := model.GetPassByToken(ctx, v.db, token)
	v.metric.ObserveRead(time.Since(start))
	switch {
	case model.IsNoRows(err):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return pass, nil
}

func deny(pass *model.Pass, reason model.DenialReason) *ScanOutcome {
	return &ScanOutcome{Outcome: model.OUTCOME_DENIED, Reason: reason, Pass: pass}
}

func passID(p *model.Pass) string {
	if p == nil {
		return ""
	}
	return p.ID
}
