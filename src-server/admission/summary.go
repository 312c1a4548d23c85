package admission

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"passgate/src-server/apperr"
	"passgate/src-server/model"

	"github.com/uptrace/bun"
)

type Summary struct {
	TotalRegistrations int `json:"totalRegistrations"`
	CheckIns           int `json:"checkIns"`
	Revoked            int `json:"revoked"`
	Denials            int `json:"denials"`
}

// Summarizer is a read-only rollup over passes and the ledger.
type Summarizer struct {
	*deps
}

func NewSummarizer(db *bun.DB, opts ...Option) *Summarizer {
	return &Summarizer{deps: newDeps(db, opts)}
}

// Summarize counts an event's passes, check-ins, revocations and non-deleted
// denials inside a single read transaction.
func (s *Summarizer) Summarize(ctx context.Context, eventID string) (Summary, error) {
	const op = "Summarize"
	var sum Summary
	if strings.TrimSpace(eventID) == "" {
		return sum, apperr.New(apperr.KindInvalidRequest, op, "eventId is required")
	}

	start := time.Now()
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		counts, err := model.CountPassesByEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		denials, err := model.CountDenialsByEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		sum = Summary{
			TotalRegistrations: counts.Total,
			CheckIns:           counts.CheckIns,
			Revoked:            counts.Revoked,
			Denials:            denials,
		}
		return nil
	})
	s.metric.ObserveRead(time.Since(start))
	if err != nil {
		return Summary{}, apperr.Storage(op, err)
	}
	return sum, nil
}
