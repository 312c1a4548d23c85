// Package admission is the pass lifecycle and scan-validation core. It owns
// every decision about issuing, rotating, revoking and consuming passes and
// writes one ledger entry per scan attempt.
package admission

import (
	"time"

	"passgate/src-server/utils"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultMaxTokenAttempts = 5

// TokenGenerator returns a fresh opaque pass token.
type TokenGenerator func() (string, error)

// UUIDTokens draws 122 random bits per token.
func UUIDTokens() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type Option func(*deps)

type deps struct {
	db               *bun.DB
	now              func() time.Time
	newToken         TokenGenerator
	maxTokenAttempts int
	metric           *utils.Metric
}

func newDeps(db *bun.DB, opts []Option) *deps {
	d := &deps{
		db:               db,
		now:              time.Now,
		newToken:         UUIDTokens,
		maxTokenAttempts: DefaultMaxTokenAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

func WithTokenGenerator(gen TokenGenerator) Option {
	return func(d *deps) { d.newToken = gen }
}

// WithMaxTokenAttempts bounds the token collision retry loop. Values below 1
// are ignored.
func WithMaxTokenAttempts(n int) Option {
	return func(d *deps) {
		if n >= 1 {
			d.maxTokenAttempts = n
		}
	}
}

func WithMetric(m *utils.Metric) Option {
	return func(d *deps) { d.metric = m }
}

func (d *deps) unixNow() int64 {
	return d.now().UTC().Unix()
}
