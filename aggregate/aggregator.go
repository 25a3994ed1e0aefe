package aggregate

import (
	"fmt"
	"math"
	"sync"

	"github.com/carbocation/chromquant/calibration"
	"github.com/carbocation/chromquant/experiment"
	"github.com/montanaflynn/stats"
)

// ConditionAggregate is the statistics of one condition. Mean and Std are in
// compound order; a compound with no replicates has NaN for both.
type ConditionAggregate struct {
	Condition  experiment.Condition
	Replicates int
	Mean       []float64
	Std        []float64
}

// Result is everything a batch produced.
type Result struct {
	Kind       experiment.Kind
	Compounds  []string
	Conditions []ConditionAggregate
	Tensor     *Tensor
}

// Aggregator collects records from concurrent workers. Call Finalize once
// every record has been added.
type Aggregator struct {
	mu         sync.Mutex
	kind       experiment.Kind
	conditions []experiment.Condition
	compounds  []string
	tensor     *Tensor
	filled     []bool
}

// NewAggregator sizes the tensor for the given conditions and compounds with
// room for maxReplicates runs per condition.
func NewAggregator(kind experiment.Kind, conditions []experiment.Condition, compounds []string, maxReplicates int) *Aggregator {
	t := NewTensor(len(conditions), len(compounds)+1, maxReplicates)

	return &Aggregator{
		kind:       kind,
		conditions: append([]experiment.Condition(nil), conditions...),
		compounds:  append([]string(nil), compounds...),
		tensor:     t,
		filled:     make([]bool, len(conditions)*maxReplicates),
	}
}

// Add stores one record in the slot of the given condition and replicate.
// Each slot may be filled once.
func (a *Aggregator) Add(step, replicate int, rec *calibration.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if step < 0 || step >= a.tensor.Conditions {
		return fmt.Errorf("%s: condition %d out of range [0, %d)", rec.Path, step, a.tensor.Conditions)
	}
	if replicate < 0 || replicate >= a.tensor.Replicates {
		return fmt.Errorf("%s: replicate %d out of range [0, %d)", rec.Path, replicate, a.tensor.Replicates)
	}
	if len(rec.Concentrations) != len(a.compounds) {
		return fmt.Errorf("%s: record has %d compounds, expected %d", rec.Path, len(rec.Concentrations), len(a.compounds))
	}

	slot := step*a.tensor.Replicates + replicate
	if a.filled[slot] {
		return fmt.Errorf("%s: condition %s replicate %d was already filled", rec.Path, a.conditions[step].Label, replicate)
	}
	a.filled[slot] = true

	a.tensor.Set(step, 0, replicate, rec.Timestamp)
	for j, c := range rec.Concentrations {
		a.tensor.Set(step, j+1, replicate, c)
	}

	return nil
}

// Finalize computes per-condition statistics over the replicates collected.
// Missing slots are ignored rather than treated as zero.
func (a *Aggregator) Finalize() *Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := &Result{
		Kind:       a.kind,
		Compounds:  append([]string(nil), a.compounds...),
		Conditions: make([]ConditionAggregate, len(a.conditions)),
		Tensor:     a.tensor,
	}

	for i, cond := range a.conditions {
		agg := ConditionAggregate{
			Condition:  cond,
			Replicates: len(a.tensor.Present(i, 0)),
			Mean:       make([]float64, len(a.compounds)),
			Std:        make([]float64, len(a.compounds)),
		}
		for j := range a.compounds {
			agg.Mean[j], agg.Std[j] = MeanStd(a.tensor.Present(i, j+1))
		}
		out.Conditions[i] = agg
	}

	return out
}

// MeanStd returns the mean and population standard deviation of values, or
// NaN for both if values is empty.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return math.NaN(), math.NaN()
	}
	std, err = stats.StandardDeviationPopulation(values)
	if err != nil {
		return mean, math.NaN()
	}

	return mean, std
}
