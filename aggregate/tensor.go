// Package aggregate combines per-trace concentration records into
// per-condition statistics and stores them as a re-loadable archive.
package aggregate

import (
	"fmt"
	"math"
)

// Tensor is a dense [condition][row][replicate] array of float64 in C
// order. Row 0 of every condition holds trace timestamps (epoch seconds),
// rows 1.. hold compound concentrations in calibration table order. Slots
// with no trace are NaN.
type Tensor struct {
	Conditions int
	Rows       int
	Replicates int
	Data       []float64
}

// NewTensor allocates a tensor with every slot missing.
func NewTensor(conditions, rows, replicates int) *Tensor {
	t := &Tensor{
		Conditions: conditions,
		Rows:       rows,
		Replicates: replicates,
		Data:       make([]float64, conditions*rows*replicates),
	}
	for i := range t.Data {
		t.Data[i] = math.NaN()
	}

	return t
}

// Shape in the order the data is laid out.
func (t *Tensor) Shape() []int {
	return []int{t.Conditions, t.Rows, t.Replicates}
}

func (t *Tensor) offset(condition, row, replicate int) int {
	return (condition*t.Rows+row)*t.Replicates + replicate
}

func (t *Tensor) At(condition, row, replicate int) float64 {
	return t.Data[t.offset(condition, row, replicate)]
}

func (t *Tensor) Set(condition, row, replicate int, v float64) {
	t.Data[t.offset(condition, row, replicate)] = v
}

// Present returns the non-missing values of one row of one condition, in
// replicate order.
func (t *Tensor) Present(condition, row int) []float64 {
	out := make([]float64, 0, t.Replicates)
	for k := 0; k < t.Replicates; k++ {
		if v := t.At(condition, row, k); !math.IsNaN(v) {
			out = append(out, v)
		}
	}

	return out
}

// Timestamps returns every non-missing timestamp in the tensor, condition by
// condition.
func (t *Tensor) Timestamps() []float64 {
	var out []float64
	for c := 0; c < t.Conditions; c++ {
		out = append(out, t.Present(c, 0)...)
	}

	return out
}

func tensorFromShape(shape []int, data []float64) (*Tensor, error) {
	if len(shape) != 3 {
		return nil, fmt.Errorf("expected a 3-dimensional array, got shape %v", shape)
	}
	if n := shape[0] * shape[1] * shape[2]; n != len(data) {
		return nil, fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}

	return &Tensor{Conditions: shape[0], Rows: shape[1], Replicates: shape[2], Data: data}, nil
}
