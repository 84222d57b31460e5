// Package workload assembles the final workload artifact: the ordered query
// list plus its configuration and statistics blocks.
package workload

import (
	"math/rand"

	"shaper/internal/catalog"
	"shaper/internal/ledger"
	"shaper/internal/runinfo"

	"github.com/pkg/errors"
)

// ConfigInfo records the construction parameters of an artifact.
type ConfigInfo struct {
	Benchmark        string   `json:"benchmark_type"`
	Split            string   `json:"split"`
	TargetDB         string   `json:"target_db,omitempty"`
	Domain           string   `json:"domain,omitempty"`
	DistributionType string   `json:"distribution_type"`
	Criterion        string   `json:"criterion,omitempty"`
	Alpha            *float64 `json:"alpha,omitempty"`
	PowerLawS        *float64 `json:"power_law_s,omitempty"`
	NumQueries       int      `json:"num_queries"`
	TargetCount      int      `json:"target_count"`
	Seed             int64    `json:"seed"`
}

// Statistics records the realized shape of an artifact. Complete is false
// when bounded backfill could not reach the target count. The masking
// histograms count queries per template masking count, duplicates included:
// OriginalTemplatesPerMaskingCnt covers the sampled draws and sums to the
// draw count, TemplatesPerMaskingCnt covers the realized query list.
type Statistics struct {
	TotalQueries                   int            `json:"total_queries"`
	TargetCount                    int            `json:"target_count"`
	Complete                       bool           `json:"is_complete"`
	UniqueTemplates                int            `json:"unique_templates"`
	QueriesPerDB                   map[string]int `json:"queries_per_db,omitempty"`
	TemplatesPerMaskingCnt         map[int]int    `json:"templates_per_masking_cnt,omitempty"`
	OriginalTemplatesPerMaskingCnt map[int]int    `json:"original_templates_per_masking_cnt,omitempty"`
}

// Artifact is the persisted workload document.
type Artifact struct {
	Config     ConfigInfo         `json:"config"`
	Statistics Statistics         `json:"statistics"`
	RunInfo    *runinfo.BasicInfo `json:"run_info,omitempty"`
	Queries    []catalog.Instance `json:"queries"`
}

// Reindex assigns sequential ids 1..N in place, finalizing query order.
func Reindex(queries []catalog.Instance) {
	for i := range queries {
		queries[i].ID = i + 1
	}
}

// Shuffle permutes queries with the run's generator and re-indexes them.
func Shuffle(queries []catalog.Instance, r *rand.Rand) {
	r.Shuffle(len(queries), func(i, j int) {
		queries[i], queries[j] = queries[j], queries[i]
	})
	Reindex(queries)
}

// MaskingHistogram counts list entries per template masking count. Repeated
// templates count once per occurrence, so a histogram over sampled draws
// sums to the number of draws.
func MaskingHistogram(templates []catalog.Template) map[int]int {
	if len(templates) == 0 {
		return nil
	}
	hist := make(map[int]int)
	for _, tpl := range templates {
		hist[tpl.MaskCount()]++
	}
	return hist
}

// CheckNoReuse verifies the at-most-once invariant over a selected query
// list. It must run before Reindex, while ids still carry the original
// (template, instance) identity. A violation is a programming fault,
// reported as an error so the run aborts instead of persisting a corrupt
// artifact.
func CheckNoReuse(queries []catalog.Instance) error {
	seen := make(map[ledger.Key]struct{}, len(queries))
	for _, q := range queries {
		k := ledger.Key{Template: q.Key(), InstanceID: q.ID}
		if _, ok := seen[k]; ok {
			return errors.Errorf("workload: instance %s#%d appears twice", k.Template, k.InstanceID)
		}
		seen[k] = struct{}{}
	}
	return nil
}
