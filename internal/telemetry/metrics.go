package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка.
var (
	// AtomsExecuted — успешно выполненные атомы.
	AtomsExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atomika_atoms_executed_total",
		Help: "Atoms that completed execution successfully",
	})

	// AtomsFailed — атомы, завершившиеся ошибкой.
	AtomsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atomika_atoms_failed_total",
		Help: "Atoms whose execution ended in failure",
	})

	// AtomsReverted — откаченные атомы.
	AtomsReverted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atomika_atoms_reverted_total",
		Help: "Atoms that were reverted",
	})

	// RetriesAbsorbed — неудачи, поглощённые retry-контроллерами.
	RetriesAbsorbed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atomika_retries_absorbed_total",
		Help: "Failures absorbed by retry controllers",
	})

	// AtomsInFlight — атомы в выполнении прямо сейчас.
	AtomsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atomika_atoms_in_flight",
		Help: "Atoms currently running",
	})

	// AtomDuration — длительность выполнения атома.
	AtomDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atomika_atom_duration_seconds",
		Help:    "Atom execution duration",
		Buckets: prometheus.DefBuckets,
	})

	// FlowsCompleted — завершённые запуски потоков по итоговому состоянию.
	FlowsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atomika_flows_completed_total",
		Help: "Flow runs by terminal state",
	}, []string{"state"})
)
