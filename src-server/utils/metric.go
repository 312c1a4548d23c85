package utils

import "time"

type ScanSample struct {
	Outcome string
	Reason  string
}

// Metric carries samples from request paths to the prometheus collectors in
// package metric. Sends never block: a sample is dropped when nobody drains.
type Metric struct {
	DatabaseRead  chan float64
	DatabaseWrite chan float64
	Scan          chan ScanSample
	Lifecycle     chan string
}

func NewMetric() *Metric {
	return &Metric{
		DatabaseRead:  make(chan float64, 64),
		DatabaseWrite: make(chan float64, 64),
		Scan:          make(chan ScanSample, 64),
		Lifecycle:     make(chan string, 64),
	}
}

func (m *Metric) ObserveRead(d time.Duration) {
	if m == nil {
		return
	}
	select {
	case m.DatabaseRead <- float64(d.Microseconds()):
	default:
	}
}

func (m *Metric) ObserveWrite(d time.Duration) {
	if m == nil {
		return
	}
	select {
	case m.DatabaseWrite <- float64(d.Microseconds()):
	default:
	}
}

func (m *Metric) ObserveScan(outcome, reason string) {
	if m == nil {
		return
	}
	select {
	case m.Scan <- ScanSample{Outcome: outcome, Reason: reason}:
	default:
	}
}

func (m *Metric) ObserveLifecycle(op string) {
	if m == nil {
		return
	}
	select {
	case m.Lifecycle <- op:
	default:
	}
}
