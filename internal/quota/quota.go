// Package quota converts per-template frequency tables into exact integer
// instance targets.
package quota

import (
	"sort"

	"shaper/internal/catalog"

	"github.com/pkg/errors"
)

// Table maps templates to integer target counts. All counts are >= 0 and,
// after Build, sum exactly to the requested total.
type Table map[catalog.TemplateKey]int

// Total sums the counts of a table.
func (t Table) Total() int {
	total := 0
	for _, c := range t {
		total += c
	}
	return total
}

// SortedKeys orders keys by descending count, ties broken by the wire form of
// the key so the order is deterministic. This ordering backs both the primary
// selection pass and the backfill sweeps.
func (t Table) SortedKeys() []catalog.TemplateKey {
	keys := make([]catalog.TemplateKey, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if t[keys[i]] != t[keys[j]] {
			return t[keys[i]] > t[keys[j]]
		}
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Build scales a prior frequency table to sum exactly to targetTotal,
// preserving its shape with largest-remainder rounding. A target equal to the
// prior total returns the prior counts unchanged.
func Build(prior Table, targetTotal int) (Table, error) {
	if targetTotal < 0 {
		return nil, errors.Errorf("quota: negative target total %d", targetTotal)
	}
	out := make(Table, len(prior))
	if targetTotal == 0 {
		return out, nil
	}
	priorTotal := prior.Total()
	if priorTotal == 0 {
		return nil, errors.Errorf("quota: prior distribution is empty, cannot scale to %d", targetTotal)
	}
	if priorTotal == targetTotal {
		for k, c := range prior {
			out[k] = c
		}
		return out, nil
	}

	type share struct {
		key       catalog.TemplateKey
		count     int
		remainder float64
	}
	shares := make([]share, 0, len(prior))
	assigned := 0
	for k, c := range prior {
		exact := float64(c) * float64(targetTotal) / float64(priorTotal)
		floor := int(exact)
		assigned += floor
		shares = append(shares, share{key: k, count: floor, remainder: exact - float64(floor)})
	}
	// Hand the leftover units to the largest remainders; ties prefer the
	// larger prior count, then the key, keeping the result deterministic.
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].remainder != shares[j].remainder {
			return shares[i].remainder > shares[j].remainder
		}
		if prior[shares[i].key] != prior[shares[j].key] {
			return prior[shares[i].key] > prior[shares[j].key]
		}
		return shares[i].key.String() < shares[j].key.String()
	})
	for i := 0; i < targetTotal-assigned; i++ {
		shares[i%len(shares)].count++
	}
	for _, s := range shares {
		out[s.key] = s.count
	}
	return out, nil
}

// Unsatisfiable lists quota entries that request instances from templates the
// pool cannot supply at all. These are reported, never silently dropped.
func Unsatisfiable(quotas Table, pool map[catalog.TemplateKey][]catalog.Instance) []catalog.TemplateKey {
	var missing []catalog.TemplateKey
	for _, k := range quotas.SortedKeys() {
		if quotas[k] > 0 && len(pool[k]) == 0 {
			missing = append(missing, k)
		}
	}
	return missing
}
