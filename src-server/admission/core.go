package admission

import "github.com/uptrace/bun"

// Core bundles the admission components over one database.
type Core struct {
	Lifecycle  *Lifecycle
	Ledger     *Ledger
	Validator  *Validator
	Summarizer *Summarizer
}

func New(db *bun.DB, opts ...Option) *Core {
	ledger := NewLedger(db, opts...)
	return &Core{
		Lifecycle:  NewLifecycle(db, opts...),
		Ledger:     ledger,
		Validator:  NewValidator(db, ledger, opts...),
		Summarizer: NewSummarizer(db, opts...),
	}
}
