package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"StratGate/internal/domain/repository"
	"StratGate/internal/domain/service"
	"StratGate/pkg/config"
	"StratGate/pkg/logger"
)

// worstFitness marks an individual whose evaluation failed. Selection
// pressure removes it naturally instead of aborting the run.
const worstFitness = -math.MaxFloat64

// ParamRange bounds one tunable parameter.
type ParamRange struct {
	Min float64
	Max float64
}

// Individual is one candidate parameter vector with its evaluated fitness.
type Individual struct {
	Genes   map[string]float64
	Fitness float64
}

// Result summarizes one optimization run.
type Result struct {
	BestParams  map[string]float64
	BestFitness float64
	Generations int       // generations actually executed
	History     []float64 // best fitness per generation, non-decreasing
}

// Genetic tunes strategy parameters with tournament selection, uniform
// crossover, Gaussian mutation, and single-individual elitism. All
// randomness flows from one seeded source, so runs are reproducible.
type Genetic struct {
	cfg    config.Validation
	ranges map[string]ParamRange
	keys   []string
	rng    *rand.Rand
	log    *logger.Logger
	rec    repository.Metrics
}

func NewGenetic(cfg config.Validation, ranges map[string]ParamRange, log *logger.Logger, rec repository.Metrics) (*Genetic, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no parameter ranges given")
	}
	// Gene order must be fixed for seeded runs to reproduce.
	keys := make([]string, 0, len(ranges))
	for k, r := range ranges {
		if r.Min >= r.Max {
			return nil, fmt.Errorf("parameter %q: min %.4f must be below max %.4f", k, r.Min, r.Max)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &Genetic{
		cfg:    cfg,
		ranges: ranges,
		keys:   keys,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		log:    log,
		rec:    rec,
	}, nil
}

// Optimize evolves the population until the generation budget is spent,
// the best fitness plateaus, or ctx is cancelled. The returned best is
// non-decreasing across generations.
func (g *Genetic) Optimize(ctx context.Context, symbol string, fitness service.FitnessFunc) (*Result, error) {
	pop := g.initialize()

	res := &Result{BestFitness: worstFitness}
	plateau := 0

	for gen := 0; gen < g.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		g.evaluate(pop, fitness)
		sort.Slice(pop, func(i, j int) bool { return pop[i].Fitness > pop[j].Fitness })

		best := pop[0]
		if best.Fitness > res.BestFitness {
			res.BestFitness = best.Fitness
			res.BestParams = cloneGenes(best.Genes)
			plateau = 0
		} else {
			plateau++
		}
		res.Generations = gen + 1
		res.History = append(res.History, res.BestFitness)

		if g.log != nil {
			g.log.Debug("generation complete",
				logger.String("symbol", symbol),
				logger.Int("generation", gen),
				logger.Float64("best_fitness", res.BestFitness),
			)
		}
		if g.rec != nil {
			g.rec.RecordGeneration(symbol)
		}

		if plateau >= g.cfg.PlateauGenerations {
			break
		}
		if gen+1 < g.cfg.Generations {
			pop = g.nextGeneration(pop)
		}
	}

	if res.BestParams == nil {
		return nil, fmt.Errorf("optimizer found no viable individual for %s in %d generations", symbol, res.Generations)
	}
	return res, nil
}

func (g *Genetic) initialize() []Individual {
	pop := make([]Individual, g.cfg.PopulationSize)
	for i := range pop {
		genes := make(map[string]float64, len(g.keys))
		for _, k := range g.keys {
			r := g.ranges[k]
			genes[k] = r.Min + g.rng.Float64()*(r.Max-r.Min)
		}
		pop[i] = Individual{Genes: genes}
	}
	return pop
}

func (g *Genetic) evaluate(pop []Individual, fitness service.FitnessFunc) {
	for i := range pop {
		score, err := fitness(pop[i].Genes)
		if err != nil || math.IsNaN(score) {
			pop[i].Fitness = worstFitness
			continue
		}
		pop[i].Fitness = score
	}
}

// nextGeneration keeps the best individual unchanged and fills the rest
// with mutated crossover offspring of tournament winners. pop must be
// sorted best-first.
func (g *Genetic) nextGeneration(pop []Individual) []Individual {
	next := make([]Individual, 0, len(pop))
	next = append(next, Individual{Genes: cloneGenes(pop[0].Genes)})

	for len(next) < len(pop) {
		p1 := g.tournament(pop)
		p2 := g.tournament(pop)
		child := g.crossover(p1, p2)
		g.mutate(child)
		next = append(next, Individual{Genes: child})
	}
	return next
}

func (g *Genetic) tournament(pop []Individual) Individual {
	best := pop[g.rng.Intn(len(pop))]
	for i := 1; i < g.cfg.TournamentSize; i++ {
		c := pop[g.rng.Intn(len(pop))]
		if c.Fitness > best.Fitness {
			best = c
		}
	}
	return best
}

// crossover picks each gene uniformly from either parent. Below the
// crossover rate the first parent is copied unchanged.
func (g *Genetic) crossover(p1, p2 Individual) map[string]float64 {
	if g.rng.Float64() > g.cfg.CrossoverRate {
		return cloneGenes(p1.Genes)
	}
	child := make(map[string]float64, len(g.keys))
	for _, k := range g.keys {
		if g.rng.Float64() < 0.5 {
			child[k] = p1.Genes[k]
		} else {
			child[k] = p2.Genes[k]
		}
	}
	return child
}

// mutate adds Gaussian noise scaled to a tenth of each parameter's range,
// re-clamping to bounds.
func (g *Genetic) mutate(genes map[string]float64) {
	for _, k := range g.keys {
		if g.rng.Float64() >= g.cfg.MutationRate {
			continue
		}
		r := g.ranges[k]
		v := genes[k] + g.rng.NormFloat64()*0.1*(r.Max-r.Min)
		genes[k] = math.Max(r.Min, math.Min(r.Max, v))
	}
}

func cloneGenes(genes map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(genes))
	for k, v := range genes {
		out[k] = v
	}
	return out
}
