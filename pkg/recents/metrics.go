package recents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Page fetch results.
const (
	ResultOK     = "ok"
	ResultDenied = "denied"
	ResultError  = "error"
)

// Metrics holds the Prometheus metrics for the aggregator and mutator.
type Metrics struct {
	// Aggregation
	PagesTotal        *prometheus.CounterVec
	FetchSeconds      prometheus.Histogram
	RecordsScanned    prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	GroupsEmitted     prometheus.Counter
	RecordsFolded     prometheus.Counter
	BlockedFiltered   prometheus.Counter
	FuzzyMatches      prometheus.Counter

	// Mutation
	MutationsTotal *prometheus.CounterVec
	DeletedRecords prometheus.Counter
	RestoredCalls  prometheus.Counter
}

// NewMetrics registers the metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recents_pages_total",
				Help: "Page fetches by result",
			},
			[]string{"result"},
		),
		FetchSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recents_fetch_seconds",
				Help:    "Time to build one page in the background worker",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		RecordsScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "recents_records_scanned_total",
			Help: "Raw records read from the call history",
		}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "recents_duplicates_skipped_total",
			Help: "Raw records dropped for sharing a start second with their predecessor",
		}),
		GroupsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "recents_groups_emitted_total",
			Help: "Enriched entries emitted before blocked filtering",
		}),
		RecordsFolded: factory.NewCounter(prometheus.CounterOpts{
			Name: "recents_records_folded_total",
			Help: "Raw records folded into a previous entry as neighbours",
		}),
		BlockedFiltered: factory.NewCounter(prometheus.CounterOpts{
			Name: "recents_blocked_filtered_total",
			Help: "Entries removed because their number is blocked",
		}),
		FuzzyMatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "recents_fuzzy_matches_total",
			Help: "Names resolved by trailing-digit comparison",
		}),
		MutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recents_mutations_total",
				Help: "Mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		DeletedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "recents_deleted_records_total",
			Help: "Record ids submitted for deletion",
		}),
		RestoredCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "recents_restored_calls_total",
			Help: "Calls written back by restore",
		}),
	}
}

// RecordPage records the result of one fetch.
func (m *Metrics) RecordPage(result string) {
	m.PagesTotal.WithLabelValues(result).Inc()
}

// RecordAggregation records what one pass over a page of raw records did.
func (m *Metrics) RecordAggregation(s aggregationStats, seconds float64) {
	m.RecordsScanned.Add(float64(s.scanned))
	m.DuplicatesSkipped.Add(float64(s.duplicates))
	m.GroupsEmitted.Add(float64(s.groups))
	m.RecordsFolded.Add(float64(s.folded))
	m.BlockedFiltered.Add(float64(s.blocked))
	m.FuzzyMatches.Add(float64(s.fuzzy))
	m.FetchSeconds.Observe(seconds)
}

// RecordMutation records a finished mutation.
func (m *Metrics) RecordMutation(operation string, outcome Outcome) {
	m.MutationsTotal.WithLabelValues(operation, outcome.String()).Inc()
}
