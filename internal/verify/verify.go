// Package verify recomputes realized per-template distributions from
// workload outputs and compares them against their targets.
package verify

import (
	"sort"

	"shaper/internal/catalog"
	"shaper/internal/quota"

	"github.com/montanaflynn/stats"
)

// Aggregate recounts the realized per-template frequencies of a query list.
// The partition comes from each query's provenance field, so queries from a
// domain reconstruction keep their per-database identity.
func Aggregate(queries []catalog.Instance) quota.Table {
	table := make(quota.Table)
	for _, q := range queries {
		if q.TemplateID == "" {
			continue
		}
		table[q.Key()]++
	}
	return table
}

// Comparison summarizes how a realized distribution relates to its target.
type Comparison struct {
	MatchedTemplates int      `json:"matched_templates"`
	MissingTemplates []string `json:"missing_templates"`
	ExtraTemplates   []string `json:"extra_templates"`
	TotalTarget      int      `json:"total_target"`
	TotalRealized    int      `json:"total_realized"`
	MeanAbsDeviation float64  `json:"mean_abs_deviation"`
	Correlation      float64  `json:"correlation"`
}

// Compare reports matched/missing templates, totals, and a numeric summary
// of the gap between target and realized counts. It is pure: neither table
// is mutated.
func Compare(target, realized quota.Table) Comparison {
	cmp := Comparison{
		TotalTarget:   target.Total(),
		TotalRealized: realized.Total(),
	}

	union := make(map[catalog.TemplateKey]struct{}, len(target)+len(realized))
	for k := range target {
		union[k] = struct{}{}
		if realized[k] > 0 {
			cmp.MatchedTemplates++
		} else {
			cmp.MissingTemplates = append(cmp.MissingTemplates, k.String())
		}
	}
	for k := range realized {
		union[k] = struct{}{}
		if _, ok := target[k]; !ok {
			cmp.ExtraTemplates = append(cmp.ExtraTemplates, k.String())
		}
	}
	sort.Strings(cmp.MissingTemplates)
	sort.Strings(cmp.ExtraTemplates)

	if len(union) == 0 {
		return cmp
	}
	targetCounts := make(stats.Float64Data, 0, len(union))
	realizedCounts := make(stats.Float64Data, 0, len(union))
	deviations := make(stats.Float64Data, 0, len(union))
	for k := range union {
		t, r := float64(target[k]), float64(realized[k])
		targetCounts = append(targetCounts, t)
		realizedCounts = append(realizedCounts, r)
		d := t - r
		if d < 0 {
			d = -d
		}
		deviations = append(deviations, d)
	}
	if mad, err := stats.Mean(deviations); err == nil {
		cmp.MeanAbsDeviation = mad
	}
	// Correlation is undefined for constant series; leave it zero there.
	if corr, err := stats.Correlation(targetCounts, realizedCounts); err == nil {
		cmp.Correlation = corr
	}
	return cmp
}
