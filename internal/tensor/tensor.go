// Package tensor provides the dense row-major tensors that back dataset
// samples and collated batches.
package tensor

import (
	"fmt"
	"math"
)

// Float is a dense, row-major float32 tensor.
type Float struct {
	shape []int64
	data  []float32
}

// Int is a dense, row-major int64 tensor, used for symbol ids, speaker ids
// and length vectors.
type Int struct {
	shape []int64
	data  []int64
}

// NewFloat creates a tensor from data and shape. The data slice is copied.
func NewFloat(data []float32, shape []int64) (*Float, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != total {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, total)
	}

	return &Float{
		shape: append([]int64(nil), shape...),
		data:  append([]float32(nil), data...),
	}, nil
}

// ZerosFloat creates a zero-initialized float tensor.
func ZerosFloat(shape []int64) (*Float, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	return &Float{
		shape: append([]int64(nil), shape...),
		data:  make([]float32, total),
	}, nil
}

// NewInt creates an int64 tensor from data and shape. The data slice is copied.
func NewInt(data []int64, shape []int64) (*Int, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != total {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, total)
	}

	return &Int{
		shape: append([]int64(nil), shape...),
		data:  append([]int64(nil), data...),
	}, nil
}

// ZerosInt creates a zero-initialized int64 tensor.
func ZerosInt(shape []int64) (*Int, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	return &Int{
		shape: append([]int64(nil), shape...),
		data:  make([]int64, total),
	}, nil
}

func (t *Float) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

// Data returns a copy of the underlying tensor data.
func (t *Float) Data() []float32 {
	if t == nil {
		return nil
	}

	return append([]float32(nil), t.data...)
}

// RawData returns the underlying data slice.
// Callers must treat it as read-only.
func (t *Float) RawData() []float32 {
	if t == nil {
		return nil
	}

	return t.data
}

func (t *Float) ElemCount() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

func (t *Float) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

// Dim returns the size of dimension i, or 0 when out of range.
func (t *Float) Dim(i int) int64 {
	if t == nil || i < 0 || i >= len(t.shape) {
		return 0
	}

	return t.shape[i]
}

// Clone returns a deep copy.
func (t *Float) Clone() *Float {
	if t == nil {
		return nil
	}

	dup, _ := NewFloat(t.data, t.shape)

	return dup
}

func (t *Int) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

// Data returns a copy of the underlying tensor data.
func (t *Int) Data() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.data...)
}

// RawData returns the underlying data slice.
// Callers must treat it as read-only.
func (t *Int) RawData() []int64 {
	if t == nil {
		return nil
	}

	return t.data
}

func (t *Int) ElemCount() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

func (t *Int) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

// Dim returns the size of dimension i, or 0 when out of range.
func (t *Int) Dim(i int) int64 {
	if t == nil || i < 0 || i >= len(t.shape) {
		return 0
	}

	return t.shape[i]
}

func shapeElemCount(shape []int64) (int, error) {
	total := int64(1)

	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor: shape %v has negative dimension at %d", shape, i)
		}

		if d > 0 && total > math.MaxInt64/d {
			return 0, fmt.Errorf("tensor: shape %v overflows element count", shape)
		}

		total *= d
	}

	if total > int64(^uint(0)>>1) {
		return 0, fmt.Errorf("tensor: shape %v exceeds platform int size", shape)
	}

	return int(total), nil
}
