package metric

import (
	"log/slog"
	"time"

	"passgate/src-server/utils"

	"github.com/prometheus/client_golang/prometheus"
)

// register registers c, tolerating a previous registration of the same collector.
func register(name string, c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			slog.Error("can't register metric", "metric", name, "error", err)
			return c
		}
		c = are.ExistingCollector
	}
	slog.Debug("metric registered", "metric", name)
	return c
}

func unregister(name string, c prometheus.Collector) {
	switch prometheus.Unregister(c) {
	case true:
		slog.Debug("metric unregistered", "metric", name)
	case false:
		slog.Warn("metric not registered", "metric", name)
	}
}

func databaseEmptyRead(as *utils.AppState, tickerInterval time.Duration) {
	const name = "passgate_database_empty_read_microsec"
	gauge := register(name, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: "The latency of an empty database read in microseconds",
	})).(prometheus.Gauge)
	gauge.Set(0)

	go func() {
		shutdown := as.CreateGracefulShutdownChan()
		ticker := time.NewTicker(tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				unregister(name, gauge)
				return
			case <-ticker.C:
				latency, err := database(as)
				if err != nil {
					slog.Error("can't get database latency", "error", err)
					continue
				}
				gauge.Set(float64(latency.Microseconds()))
			}
		}
	}()
}

// latencyGauge mirrors the latest sample from ch and falls back to 0 when no
// sample arrives within clearTickerInterval.
func latencyGauge(as *utils.AppState, name, help string, ch <-chan float64, clearTickerInterval time.Duration) {
	gauge := register(name, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})).(prometheus.Gauge)
	gauge.Set(0)

	go func() {
		shutdown := as.CreateGracefulShutdownChan()
		clearTicker := time.NewTicker(clearTickerInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-shutdown:
				unregister(name, gauge)
				return
			case latency := <-ch:
				gauge.Set(latency)
				clearTicker.Reset(clearTickerInterval)
			case <-clearTicker.C:
				gauge.Set(0)
			}
		}
	}()
}

func scanOutcomes(as *utils.AppState) {
	const name = "passgate_scan_total"
	counter := register(name, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: "Scan decisions by outcome and denial reason",
	}, []string{"outcome", "reason"})).(*prometheus.CounterVec)

	go func() {
		shutdown := as.CreateGracefulShutdownChan()
		for {
			select {
			case <-shutdown:
				unregister(name, counter)
				return
			case sample := <-as.MetricChans.Scan:
				counter.WithLabelValues(sample.Outcome, sample.Reason).Inc()
			}
		}
	}()
}

func lifecycleOps(as *utils.AppState) {
	const name = "passgate_lifecycle_total"
	counter := register(name, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: "Successful pass lifecycle operations",
	}, []string{"op"})).(*prometheus.CounterVec)

	go func() {
		shutdown := as.CreateGracefulShutdownChan()
		for {
			select {
			case <-shutdown:
				unregister(name, counter)
				return
			case op := <-as.MetricChans.Lifecycle:
				counter.WithLabelValues(op).Inc()
			}
		}
	}()
}

func Init(as *utils.AppState) {
	tickerInterval := as.Config.GetMetricCollectionInterval()
	clearTickerInterval := as.Config.GetMetricCollectionInterval() * 2

	databaseEmptyRead(as, tickerInterval)
	latencyGauge(as, "passgate_database_read_microsec",
		"The latency of a database read in microseconds",
		as.MetricChans.DatabaseRead, clearTickerInterval)
	latencyGauge(as, "passgate_database_write_microsec",
		"The latency of a database write in microseconds",
		as.MetricChans.DatabaseWrite, clearTickerInterval)
	scanOutcomes(as)
	lifecycleOps(as)
}
