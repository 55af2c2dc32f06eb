// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package array provides the global-memory buffers kernels read and write.
//
// An Array is a strided, typed buffer (float32, float64 or float16) living
// in device or host memory. Kernels only accept device Arrays. An Array
// created with RequiresGrad carries a gradient buffer of the same shape that
// the backward pass accumulates into.
//
// Example:
//
//	w, err := array.FromSlice(values, array.Shape{16, 16}, array.Float32, array.RequiresGrad())
//	...
//	fmt.Println(w.Grad().Float32s())
package array

import (
	"github.com/born-ml/tilegrad/internal/array"
)

// Array is a shaped global-memory buffer.
type Array = array.Array

// Shape is the extent of each dimension.
type Shape = array.Shape

// DataType is the element type tag.
type DataType = array.DataType

// Space is the memory space an Array lives in.
type Space = array.Space

// Option configures Array construction.
type Option = array.Option

// Element types.
const (
	Float32 = array.Float32
	Float64 = array.Float64
	Float16 = array.Float16
)

// Memory spaces.
const (
	Device = array.Device
	Host   = array.Host
)

// Errors reported by arrays, kernels and optimizers. Match them with errors.Is.
var (
	ErrShapeMismatch     = array.ErrShapeMismatch
	ErrOutOfBounds       = array.ErrOutOfBounds
	ErrNumericDivergence = array.ErrNumericDivergence
	ErrMemorySpace       = array.ErrMemorySpace
	ErrWriteConflict     = array.ErrWriteConflict
)

// New creates a zero-filled Array.
func New(shape Shape, dtype DataType, opts ...Option) (*Array, error) {
	return array.New(shape, dtype, opts...)
}

// FromSlice creates an Array from row-major host data.
func FromSlice(data []float32, shape Shape, dtype DataType, opts ...Option) (*Array, error) {
	return array.FromSlice(data, shape, dtype, opts...)
}

// FromFloat64s is FromSlice for float64 data.
func FromFloat64s(data []float64, shape Shape, dtype DataType, opts ...Option) (*Array, error) {
	return array.FromFloat64s(data, shape, dtype, opts...)
}

// RequiresGrad attaches a gradient buffer.
func RequiresGrad() Option {
	return array.RequiresGrad()
}

// OnHost places the Array in host memory.
func OnHost() Option {
	return array.OnHost()
}

// ParseDataType maps "float32", "float64" or "float16" to a DataType.
func ParseDataType(name string) (DataType, bool) {
	return array.ParseDataType(name)
}
