package admission_test

import (
	"context"
	"strings"
	"testing"

	"passgate/src-server/admission"
	"passgate/src-server/apperr"
	"passgate/src-server/model"
)

func scannedEntry(t *testing.T, core *admission.Core, token string) *model.AttendanceEntry {
	t.Helper()
	out, err := core.Validator.Scan(context.Background(), token, "gate")
	if err != nil {
		t.Fatal(err)
	}
	return out.Entry
}

func TestAmend(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	core := admission.New(db)

	pass, _ := core.Lifecycle.Register(ctx, "E", "H")
	scannedEntry(t, core, pass.Token)
	denied := scannedEntry(t, core, pass.Token)

	checkedIn := model.OUTCOME_CHECKED_IN
	note := "  manual override at door 2 "
	entry, err := core.Ledger.Amend(ctx, denied.ID, admission.Amendment{Outcome: &checkedIn, Note: &note}, "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Outcome != model.OUTCOME_CHECKED_IN || entry.Reason != "" {
		t.Errorf("outcome/reason = %s/%s, want checked-in with no reason", entry.Outcome, entry.Reason)
	}
	if entry.Note != "manual override at door 2" {
		t.Errorf("note = %q", entry.Note)
	}
	if len(entry.Audits) != 1 || entry.Audits[0].ActorID != "admin-1" {
		t.Fatalf("audits = %+v", entry.Audits)
	}
	if !strings.Contains(entry.Audits[0].Note, "denied -> checked-in") {
		t.Errorf("audit note %q does not describe the change", entry.Audits[0].Note)
	}

	// a second amendment appends, never rewrites
	other := "second look"
	entry, err = core.Ledger.Amend(ctx, denied.ID, admission.Amendment{Note: &other}, "admin-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(entry.Audits) != 2 || entry.Audits[0].ActorID != "admin-1" || entry.Audits[1].ActorID != "admin-2" {
		t.Errorf("audits = %+v", entry.Audits)
	}
}

func TestAmendToDeniedWithReason(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	core := admission.New(db)

	pass, _ := core.Lifecycle.Register(ctx, "E", "H")
	granted := scannedEntry(t, core, pass.Token)

	denied := model.OUTCOME_DENIED
	reason := model.DENIAL_REASON_REVOKED
	entry, err := core.Ledger.Amend(ctx, granted.ID, admission.Amendment{Outcome: &denied, Reason: &reason}, "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Outcome != model.OUTCOME_DENIED || entry.Reason != model.DENIAL_REASON_REVOKED {
		t.Errorf("outcome/reason = %s/%s, want denied/revoked", entry.Outcome, entry.Reason)
	}
	if len(entry.Audits) != 1 || !strings.Contains(entry.Audits[0].Note, `reason "" -> "revoked"`) {
		t.Errorf("audits = %+v", entry.Audits)
	}

	// denied without a reason is allowed
	other := scannedEntry(t, core, "bogus")
	checkedIn := model.OUTCOME_CHECKED_IN
	if _, err := core.Ledger.Amend(ctx, other.ID, admission.Amendment{Outcome: &checkedIn}, "admin-1"); err != nil {
		t.Fatal(err)
	}
	entry, err = core.Ledger.Amend(ctx, other.ID, admission.Amendment{Outcome: &denied}, "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Reason != "" {
		t.Errorf("reason = %q, want none", entry.Reason)
	}
}

func TestAmendValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	core := admission.New(db)

	entry := scannedEntry(t, core, "bogus")
	note := "x"
	bad := model.Outcome("maybe")
	badReason := model.DenialReason("late")
	checkedIn := model.OUTCOME_CHECKED_IN
	reason := model.DENIAL_REASON_REVOKED

	cases := []struct {
		name    string
		entryID string
		change  admission.Amendment
		actor   string
		want    apperr.Kind
	}{
		{"missing entry", "nope", admission.Amendment{Note: &note}, "admin", apperr.KindNotFound},
		{"empty change", entry.ID, admission.Amendment{}, "admin", apperr.KindInvalidRequest},
		{"bad outcome", entry.ID, admission.Amendment{Outcome: &bad}, "admin", apperr.KindInvalidRequest},
		{"no actor", entry.ID, admission.Amendment{Note: &note}, "", apperr.KindInvalidRequest},
		{"bad reason", entry.ID, admission.Amendment{Reason: &badReason}, "admin", apperr.KindInvalidRequest},
		{"reason on check-in", entry.ID, admission.Amendment{Outcome: &checkedIn, Reason: &reason}, "admin", apperr.KindInvalidRequest},
	}
	for _, c := range cases {
		if _, err := core.Ledger.Amend(ctx, c.entryID, c.change, c.actor); !apperr.Is(err, c.want) {
			t.Errorf("%s: err = %v, want %s", c.name, err, c.want)
		}
	}

	unchanged, err := core.Ledger.Get(ctx, entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if unchanged.Outcome != model.OUTCOME_DENIED || len(unchanged.Audits) != 0 {
		t.Errorf("rejected amendments changed the entry: %+v", unchanged)
	}
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	core := admission.New(db)

	pass, _ := core.Lifecycle.Register(ctx, "E", "H")
	scannedEntry(t, core, pass.Token)
	denied := scannedEntry(t, core, pass.Token)

	if _, err := core.Ledger.SoftDelete(ctx, "missing", "admin"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}

	for i := 1; i <= 2; i++ {
		entry, err := core.Ledger.SoftDelete(ctx, denied.ID, "admin")
		if err != nil {
			t.Fatal(err)
		}
		if !entry.Deleted {
			t.Error("entry should be deleted")
		}
		if len(entry.Audits) != i {
			t.Errorf("after %d deletes: %d audits", i, len(entry.Audits))
		}
	}

	visible, err := core.Ledger.ForEvent(ctx, "E", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 {
		t.Errorf("visible entries = %d, want 1", len(visible))
	}
	all, err := core.Ledger.ForEvent(ctx, "E", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all entries = %d, want 2", len(all))
	}
	if n := countEntries(t, db); n != 2 {
		t.Errorf("soft delete removed rows: %d left", n)
	}
}
