// Package rank orders template populations to establish the domain over
// which a sampling distribution is defined.
package rank

import (
	"math/rand"
	"sort"

	"shaper/internal/catalog"

	"github.com/pkg/errors"
)

// Criterion selects a ranking policy. The values match the criterion names
// used in distribution documents.
type Criterion string

const (
	// ByCount keeps the catalog order. Catalogs are already sorted by
	// descending observed count, so this is the identity policy.
	ByCount Criterion = "rank"
	// ByRandom applies a seeded uniform permutation.
	ByRandom Criterion = "random"
	// ByLength sorts ascending by primary question length; rank 1 is the
	// shortest question. The sort is stable, ties keep catalog order.
	ByLength Criterion = "query_len"
)

// ErrUnsupportedCriterion reports a ranking criterion outside the known set.
var ErrUnsupportedCriterion = errors.New("rank: unsupported criterion")

// Order returns a fresh ordering of templates under the given criterion.
// Ranks are positional (index+1) and never persisted on the templates.
// An empty population yields an empty ordering, not an error.
func Order(templates []catalog.Template, criterion Criterion, r *rand.Rand) ([]catalog.Template, error) {
	ordered := append([]catalog.Template(nil), templates...)
	switch criterion {
	case ByCount:
	case ByRandom:
		r.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	case ByLength:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].QuestionLength() < ordered[j].QuestionLength()
		})
	default:
		return nil, errors.Wrapf(ErrUnsupportedCriterion, "%q", criterion)
	}
	return ordered, nil
}
