// Copyright 2025 James Ross
package planner

import (
	"math"
	"math/rand"
	"sort"

	"github.com/jrossdev/cogsim/internal/experiment"
)

// AcquisitionKind selects the figure of merit the surrogate planner
// maximizes when ranking candidate points.
type AcquisitionKind string

const (
	UCB      AcquisitionKind = "ucb"
	EI       AcquisitionKind = "ei"
	Thompson AcquisitionKind = "thompson"
)

// SurrogatePlanner is a lightweight Bayesian-optimization-style planner: a
// k-nearest-neighbor surrogate over run history scored by one of three
// acquisition functions. Delegates to GridPlanner during warm-up.
type SurrogatePlanner struct {
	RandomCandidates int
	Beta             float64
	Acquisition      AcquisitionKind
	rng              *rand.Rand
	grid             *GridPlanner
}

// NewSurrogatePlanner builds a planner seeded deterministically so that
// repeated calls with the same seed, history and design space reproduce
// identical proposals.
func NewSurrogatePlanner(seed int64, acquisition AcquisitionKind) *SurrogatePlanner {
	return &SurrogatePlanner{
		RandomCandidates: 64,
		Beta:             0.6,
		Acquisition:      acquisition,
		rng:              rand.New(rand.NewSource(seed)),
		grid:             NewGridPlanner(),
	}
}

func (p *SurrogatePlanner) Propose(domain string, space experiment.DesignSpace, objectives []experiment.ObjectiveSpec,
	constraints []experiment.ConstraintSpec, history []experiment.RunResult, n int) []experiment.ExperimentSpec {

	if len(history) < 5 {
		return p.grid.Propose(domain, space, objectives, constraints, history, n)
	}

	names := sortedBoundNames(space.Bounds)
	pool := make([]map[string]float64, p.RandomCandidates)
	for i := range pool {
		pool[i] = p.samplePoint(space, names)
	}

	bestObserved := p.bestObserved(history, objectives)

	type scored struct {
		params map[string]float64
		value  float64
	}
	ranked := make([]scored, len(pool))
	for i, params := range pool {
		ranked[i] = scored{params: params, value: p.acquisitionValue(params, history, objectives, bestObserved)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].value > ranked[j].value })

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]experiment.ExperimentSpec, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, experiment.ExperimentSpec{
			ExperimentID: experimentID(domain, "mb", len(history)+i+1),
			Domain:       domain,
			Parameters:   ranked[i].params,
			Objectives:   cloneObjectives(objectives),
			Constraints:  cloneConstraints(constraints),
			Metadata:     map[string]string{"planner": "model_based", "acquisition": string(p.Acquisition)},
		})
	}
	return out
}

func (p *SurrogatePlanner) samplePoint(space experiment.DesignSpace, names []string) map[string]float64 {
	params := make(map[string]float64, len(names))
	for _, name := range names {
		bounds := space.Bounds[name]
		lo, hi := bounds[0], bounds[1]
		params[name] = lo + p.rng.Float64()*(hi-lo)
	}
	return params
}

func (p *SurrogatePlanner) acquisitionValue(params map[string]float64, history []experiment.RunResult,
	objectives []experiment.ObjectiveSpec, bestObserved float64) float64 {

	mean, std := p.surrogateMeanStd(params, history, objectives)

	switch p.Acquisition {
	case UCB:
		return mean + p.Beta*std
	case EI:
		improvement := mean - bestObserved
		if improvement < 0 {
			improvement = 0
		}
		return improvement + 0.1*std
	case Thompson:
		s := std
		if s < 1e-6 {
			s = 1e-6
		}
		return mean + p.rng.NormFloat64()*s
	default:
		return mean
	}
}

func (p *SurrogatePlanner) surrogateMeanStd(params map[string]float64, history []experiment.RunResult,
	objectives []experiment.ObjectiveSpec) (float64, float64) {

	type row struct {
		distance float64
		score    float64
	}
	rows := make([]row, 0, len(history))
	for _, r := range history {
		if r.Status != experiment.RunOK {
			continue
		}
		rows = append(rows, row{distance: euclideanDistance(params, r.Parameters), score: scoreOutputs(r.Outputs, objectives)})
	}

	if len(rows) == 0 {
		return 0, 1
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].distance < rows[j].distance })
	k := 7
	if k > len(rows) {
		k = len(rows)
	}
	neighbors := rows[:k]

	weights := make([]float64, k)
	weightSum := 0.0
	for i, r := range neighbors {
		weights[i] = 1.0 / (r.distance + 1e-6)
		weightSum += weights[i]
	}

	mean := 0.0
	for i, r := range neighbors {
		mean += (weights[i] / weightSum) * r.score
	}

	variance := 0.0
	for i, r := range neighbors {
		diff := r.score - mean
		variance += (weights[i] / weightSum) * diff * diff
	}

	distanceSum := 0.0
	for _, r := range neighbors {
		distanceSum += r.distance
	}
	meanDistance := distanceSum / float64(k)

	std := math.Sqrt(math.Max(0, variance)) + 0.2*meanDistance
	return mean, std
}

func (p *SurrogatePlanner) bestObserved(history []experiment.RunResult, objectives []experiment.ObjectiveSpec) float64 {
	best := 0.0
	found := false
	for _, r := range history {
		if r.Status != experiment.RunOK {
			continue
		}
		s := scoreOutputs(r.Outputs, objectives)
		if !found || s > best {
			best = s
			found = true
		}
	}
	return best
}

func euclideanDistance(a, b map[string]float64) float64 {
	shared := make([]string, 0, len(a))
	for k := range a {
		if _, ok := b[k]; ok {
			shared = append(shared, k)
		}
	}
	if len(shared) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, k := range shared {
		d := a[k] - b[k]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func sortedBoundNames(bounds map[string][2]float64) []string {
	names := make([]string, 0, len(bounds))
	for name := range bounds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
