// Package metrics holds the Prometheus collectors for the collection run,
// the indexer and the read API.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collection and indexing counters.
var (
	HarvestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autotrans",
			Name:      "harvested_candidates_total",
			Help:      "Candidates returned by harvesters",
		},
		[]string{"harvester", "lang"},
	)

	HarvestErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autotrans",
			Name:      "harvest_errors_total",
			Help:      "Harvester calls that failed and yielded nothing",
		},
		[]string{"harvester"},
	)

	ClassifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autotrans",
			Name:      "classified_candidates_total",
			Help:      "Classifier outcomes",
		},
		[]string{"classifier", "outcome"}, // outcome: accepted / rejected / undecided
	)

	StoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autotrans",
			Name:      "stored_documents_total",
			Help:      "Document store write outcomes",
		},
		[]string{"lang", "outcome"}, // outcome: inserted / duplicate / error
	)

	IndexedChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autotrans",
			Name:      "indexed_chunks_total",
			Help:      "Vector chunk outcomes",
		},
		[]string{"lang", "outcome"}, // outcome: upserted / exists / skipped
	)

	LLMCostUSD = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autotrans",
			Name:      "llm_cost_usd_total",
			Help:      "Estimated model spend in USD",
		},
		[]string{"provider", "model"},
	)
)

func init() {
	prometheus.MustRegister(
		HarvestedTotal,
		HarvestErrorsTotal,
		ClassifiedTotal,
		StoredTotal,
		IndexedChunksTotal,
		LLMCostUSD,
	)
}
