// Package selector realizes per-template instance quotas against finite
// instance pools, with bounded backfill when pools run short.
package selector

import (
	"math/rand"

	"shaper/internal/catalog"
	"shaper/internal/ledger"
	"shaper/internal/quota"
)

// Pool groups the available instances by template. Pools are read-only
// inputs; selection consumes instances only through the ledger.
type Pool map[catalog.TemplateKey][]catalog.Instance

// Result describes one selection outcome. Shortfall > 0 is a soft condition:
// the caller decides whether an under-filled workload is acceptable.
type Result struct {
	Selected       []catalog.Instance
	Target         int
	Shortfall      int
	BackfillRounds int
	BackfillAdded  int
	PerPartition   map[string]int
	Unsatisfiable  []catalog.TemplateKey
}

// Complete reports whether the target total was fully realized.
func (r Result) Complete() bool {
	return r.Shortfall == 0
}

// Selector draws unused instances from pools under the control of a single
// run-scoped ledger.
type Selector struct {
	ledger *ledger.Ledger
}

// New builds a selector around the run's ledger.
func New(led *ledger.Ledger) *Selector {
	return &Selector{ledger: led}
}

// Select fills the quotas from the pool. The primary pass walks templates in
// descending quota order and pulls up to quota unused instances each, in pool
// order. If the total falls short, bounded backfill sweeps repair the output:
// each sweep revisits templates in descending original-quota order and takes
// at most one extra unused instance per template, spreading the repair
// instead of exhausting one template. A sweep that adds nothing terminates
// the backfill with the residual shortfall reported. No instance is ever
// selected twice.
func (s *Selector) Select(pool Pool, quotas quota.Table) Result {
	order := quotas.SortedKeys()
	res := Result{
		Target:        quotas.Total(),
		PerPartition:  make(map[string]int),
		Unsatisfiable: quota.Unsatisfiable(quotas, pool),
	}

	for _, key := range order {
		taken := 0
		for _, inst := range pool[key] {
			if taken >= quotas[key] {
				break
			}
			if s.take(&res, key, inst) {
				taken++
			}
		}
	}

	res.Shortfall = res.Target - len(res.Selected)
	for res.Shortfall > 0 {
		added := 0
		for _, key := range order {
			if res.Shortfall == 0 {
				break
			}
			for _, inst := range pool[key] {
				if s.take(&res, key, inst) {
					added++
					res.Shortfall--
					break
				}
			}
		}
		if added == 0 {
			break
		}
		res.BackfillRounds++
		res.BackfillAdded += added
	}
	return res
}

// SelectRandom draws target instances uniformly at random from the
// deduplicated union of all pools. This backs the randomized domain
// reconstruction mode, which has no target shape. Only the drawn instances
// are marked in the ledger; the rest of the pool stays available.
func (s *Selector) SelectRandom(pool Pool, order []catalog.TemplateKey, target int, r *rand.Rand) Result {
	type pooled struct {
		key  catalog.TemplateKey
		inst catalog.Instance
	}
	var available []pooled
	seen := make(map[ledger.Key]struct{})
	for _, key := range order {
		for _, inst := range pool[key] {
			k := ledger.Key{Template: key, InstanceID: inst.ID}
			if s.ledger.Used(k) {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			available = append(available, pooled{key, inst})
		}
	}

	res := Result{Target: target, PerPartition: make(map[string]int)}
	count := target
	if count > len(available) {
		count = len(available)
	}
	for _, idx := range r.Perm(len(available))[:count] {
		pick := available[idx]
		s.take(&res, pick.key, pick.inst)
	}
	res.Shortfall = target - len(res.Selected)
	return res
}

// take consumes one unused instance for key, tagging it with its partition
// provenance. It reports false when the instance was already used.
func (s *Selector) take(res *Result, key catalog.TemplateKey, inst catalog.Instance) bool {
	k := ledger.Key{Template: key, InstanceID: inst.ID}
	if s.ledger.Used(k) {
		return false
	}
	s.ledger.Mark(k)
	inst.TargetDB = key.Partition
	res.Selected = append(res.Selected, inst)
	res.PerPartition[key.Partition]++
	return true
}
