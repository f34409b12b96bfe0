// Package metrics counts tick outcomes for Prometheus.
//
// Series:
//   - dreichor_ticks_total{plane}
//   - dreichor_intents_total{side}
//   - dreichor_intents_skipped_total{reason}
//   - dreichor_safety_verdicts_total{result}
//   - dreichor_executions_total{plane,status}
//   - dreichor_open_quantity{plane}
//
// Metrics are write-only from the engine's point of view and never feed a
// decision. There is no HTTP listener; WriteTextfile exports for the node
// exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ceerkle/dreichor-trading/engine"
	"github.com/ceerkle/dreichor-trading/strategy"
)

var log = logrus.WithField("component", "metrics")

type Recorder struct {
	reg *prometheus.Registry

	ticks    *prometheus.CounterVec
	intents  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	verdicts *prometheus.CounterVec
	execs    *prometheus.CounterVec
	openQty  *prometheus.GaugeVec
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dreichor_ticks_total", Help: "Ticks completed"},
			[]string{"plane"},
		),
		intents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dreichor_intents_total", Help: "Order intents created"},
			[]string{"side"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dreichor_intents_skipped_total", Help: "Ticks without an order intent, by reason"},
			[]string{"reason"},
		),
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dreichor_safety_verdicts_total", Help: "Safety verdicts"},
			[]string{"result"},
		),
		execs: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dreichor_executions_total", Help: "Executions by plane and status"},
			[]string{"plane", "status"},
		),
		openQty: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dreichor_open_quantity", Help: "Sum of open position quantities in the shadow ledger"},
			[]string{"plane"},
		),
	}
	r.reg.MustRegister(r.ticks, r.intents, r.skipped, r.verdicts, r.execs, r.openQty)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Observe implements engine.Observer.
func (r *Recorder) Observe(res engine.Result) {
	plane := string(res.Ledger.Plane)
	r.ticks.WithLabelValues(plane).Inc()

	switch p := res.Proposal.(type) {
	case strategy.Intent:
		r.intents.WithLabelValues(string(p.Side)).Inc()
	case strategy.NoIntent:
		r.skipped.WithLabelValues(string(p.Reason)).Inc()
	}
	r.verdicts.WithLabelValues(string(res.Verdict.Type)).Inc()

	if res.Outcome != nil {
		r.execs.WithLabelValues(string(res.Outcome.Plane), string(res.Outcome.Status)).Inc()
	}
	open, err := res.Ledger.OpenQuantity()
	if err != nil {
		log.WithError(err).Warn("open quantity not updated")
		return
	}
	r.openQty.WithLabelValues(plane).Set(open.InexactFloat64())
}

// WriteTextfile writes every series to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
