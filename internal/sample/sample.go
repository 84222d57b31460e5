// Package sample draws i.i.d. template selections from an ordered population
// according to a closed-form distribution over ranks or question lengths.
package sample

import (
	"math"
	"math/rand"

	"shaper/internal/catalog"
	"shaper/internal/rank"

	"github.com/pkg/errors"
)

// Errors surfaced by the sampler. Both are fatal configuration/population
// conditions; callers abort the construction run.
var (
	ErrEmptyPopulation         = errors.New("sample: empty template population")
	ErrUnsupportedDistribution = errors.New("sample: unsupported distribution")
)

// Distribution names accepted by Draw.
const (
	DistUniform = "uniform"
	DistZipf    = "zipf"
)

// Params carries the shape parameters of the parametric families.
type Params struct {
	Alpha     float64
	PowerLawS float64
}

// Sampler draws templates with replacement from ordered populations. All
// randomness comes from the single generator passed at construction, so a
// fixed seed reproduces the exact output sequence.
type Sampler struct {
	r *rand.Rand
}

// New builds a sampler around an explicitly seeded generator.
func New(r *rand.Rand) *Sampler {
	return &Sampler{r: r}
}

// Draw selects numSamples templates from the ordered population under the
// named distribution. Zipf with the query_len criterion is the power-law
// family keyed on question length; every other zipf criterion is rank-based.
func (s *Sampler) Draw(ordered []catalog.Template, numSamples int, distribution string, criterion rank.Criterion, p Params) ([]catalog.Template, error) {
	switch distribution {
	case DistUniform:
		return s.Uniform(ordered, numSamples)
	case DistZipf:
		if criterion == rank.ByLength {
			return s.PowerLaw(ordered, numSamples, p.PowerLawS)
		}
		return s.Zipf(ordered, numSamples, p.Alpha)
	default:
		return nil, errors.Wrapf(ErrUnsupportedDistribution, "%q", distribution)
	}
}

// Uniform draws numSamples templates, each with probability 1/n.
func (s *Sampler) Uniform(ordered []catalog.Template, numSamples int) ([]catalog.Template, error) {
	if numSamples == 0 {
		return nil, nil
	}
	if len(ordered) == 0 {
		return nil, errors.Wrap(ErrEmptyPopulation, "uniform")
	}
	out := make([]catalog.Template, 0, numSamples)
	for i := 0; i < numSamples; i++ {
		out = append(out, ordered[s.r.Intn(len(ordered))])
	}
	return out, nil
}

// Zipf draws numSamples templates with probability proportional to
// rank^(-alpha), rank 1 being the first template of the ordering.
func (s *Sampler) Zipf(ordered []catalog.Template, numSamples int, alpha float64) ([]catalog.Template, error) {
	weights := make([]float64, len(ordered))
	for i := range ordered {
		weights[i] = math.Pow(float64(i+1), -alpha)
	}
	return s.weighted(ordered, numSamples, weights, "zipf")
}

// PowerLaw draws numSamples templates with probability proportional to
// length^(-sExp) over primary question lengths. Zero-length questions get
// zero weight instead of a diverging one.
func (s *Sampler) PowerLaw(ordered []catalog.Template, numSamples int, sExp float64) ([]catalog.Template, error) {
	weights := make([]float64, len(ordered))
	for i, tpl := range ordered {
		if k := tpl.QuestionLength(); k > 0 {
			weights[i] = math.Pow(float64(k), -sExp)
		}
	}
	return s.weighted(ordered, numSamples, weights, "power-law")
}

func (s *Sampler) weighted(ordered []catalog.Template, numSamples int, weights []float64, family string) ([]catalog.Template, error) {
	if numSamples == 0 {
		return nil, nil
	}
	if len(ordered) == 0 {
		return nil, errors.Wrap(ErrEmptyPopulation, family)
	}
	cumulative := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		total += w
		cumulative[i] = total
	}
	if total <= 0 {
		return nil, errors.Wrapf(ErrEmptyPopulation, "%s: no template carries positive weight", family)
	}
	out := make([]catalog.Template, 0, numSamples)
	for i := 0; i < numSamples; i++ {
		out = append(out, ordered[searchCumulative(cumulative, s.r.Float64()*total)])
	}
	return out, nil
}

// searchCumulative finds the first index whose cumulative weight exceeds x.
// Zero-weight entries never match because they repeat the previous bound.
func searchCumulative(cumulative []float64, x float64) int {
	lo, hi := 0, len(cumulative)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cumulative[mid] > x {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}
