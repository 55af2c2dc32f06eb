package array

import (
	"math"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/born-ml/tilegrad/internal/parallel"
)

// Array is a global-memory buffer addressed by a shape, strides and an offset.
//
// Exactly one of the typed backing slices is set, according to dtype. Views
// (Flatten, T) share the backing slice and the gradient storage with their parent.
type Array struct {
	shape   Shape
	strides []int
	offset  int
	dtype   DataType
	space   Space

	f32 []float32
	f64 []float64
	f16 []float16.Float16

	grad *Array // nil unless the Array requires gradients
}

type options struct {
	requiresGrad bool
	space        Space
}

// Option configures Array construction.
type Option func(*options)

// RequiresGrad attaches a zero-initialized gradient Array of the same shape.
func RequiresGrad() Option {
	return func(o *options) { o.requiresGrad = true }
}

// WithGrad is RequiresGrad with an explicit flag, convenient for callers that
// carry the differentiability flag around as data.
func WithGrad(requiresGrad bool) Option {
	return func(o *options) { o.requiresGrad = requiresGrad }
}

// OnHost places the Array in host memory. Kernels reject host Arrays.
func OnHost() Option {
	return func(o *options) { o.space = Host }
}

// New creates a zero-filled Array.
func New(shape Shape, dtype DataType, opts ...Option) (*Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessage(err, "array.New")
	}
	cfg := options{space: Device}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := newStorage(shape, dtype, cfg.space)
	if cfg.requiresGrad {
		a.grad = newStorage(shape, dtype.gradType(), cfg.space)
	}
	return a, nil
}

// FromSlice creates an Array from host data laid out in row-major order,
// converting the values to dtype.
func FromSlice(data []float32, shape Shape, dtype DataType, opts ...Option) (*Array, error) {
	a, err := New(shape, dtype, opts...)
	if err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, errors.Wrapf(ErrShapeMismatch, "array.FromSlice: %d values for shape %s", len(data), shape)
	}
	for i, v := range data {
		a.StoreAt(i, v)
	}
	return a, nil
}

// FromFloat64s is FromSlice for float64 host data.
func FromFloat64s(data []float64, shape Shape, dtype DataType, opts ...Option) (*Array, error) {
	a, err := New(shape, dtype, opts...)
	if err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, errors.Wrapf(ErrShapeMismatch, "array.FromFloat64s: %d values for shape %s", len(data), shape)
	}
	for i, v := range data {
		a.storeAt64(i, v)
	}
	return a, nil
}

func newStorage(shape Shape, dtype DataType, space Space) *Array {
	n := shape.NumElements()
	a := &Array{
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		dtype:   dtype,
		space:   space,
	}
	switch dtype {
	case Float32:
		a.f32 = make([]float32, n)
	case Float64:
		a.f64 = make([]float64, n)
	case Float16:
		a.f16 = make([]float16.Float16, n)
	default:
		panic("unknown data type")
	}
	return a
}

// Shape returns the Array's shape.
func (a *Array) Shape() Shape {
	return a.shape
}

// Strides returns the element strides.
func (a *Array) Strides() []int {
	return a.strides
}

// DType returns the element type tag.
func (a *Array) DType() DataType {
	return a.dtype
}

// Space returns the memory space.
func (a *Array) Space() Space {
	return a.space
}

// NumElements returns the total number of elements.
func (a *Array) NumElements() int {
	return a.shape.NumElements()
}

// RequiresGrad reports whether the Array carries a gradient buffer.
func (a *Array) RequiresGrad() bool {
	return a.grad != nil
}

// Grad returns the gradient Array, or nil.
func (a *Array) Grad() *Array {
	return a.grad
}

// Contiguous reports whether the Array is laid out densely in row-major order.
func (a *Array) Contiguous() bool {
	want := a.shape.ComputeStrides()
	for i := range want {
		if a.shape[i] > 1 && a.strides[i] != want[i] {
			return false
		}
	}
	return true
}

// Offset returns the storage offset of the element at idx.
func (a *Array) Offset(idx ...int) (int, error) {
	if len(idx) != len(a.shape) {
		return 0, errors.Wrapf(ErrShapeMismatch, "index rank %d for array of shape %s", len(idx), a.shape)
	}
	off := a.offset
	for i, x := range idx {
		if x < 0 || x >= a.shape[i] {
			return 0, errors.Wrapf(ErrOutOfBounds, "index %v for array of shape %s", idx, a.shape)
		}
		off += x * a.strides[i]
	}
	return off, nil
}

// Offset2 is Offset for 2-D Arrays without bounds checks.
// Callers must have validated the indices against Shape.
func (a *Array) Offset2(row, col int) int {
	return a.offset + row*a.strides[0] + col*a.strides[1]
}

// At returns the element at idx. It panics on an invalid index.
func (a *Array) At(idx ...int) float32 {
	off, err := a.Offset(idx...)
	if err != nil {
		panic(err)
	}
	return a.LoadAt(off)
}

// Set writes the element at idx. It panics on an invalid index.
func (a *Array) Set(v float32, idx ...int) {
	off, err := a.Offset(idx...)
	if err != nil {
		panic(err)
	}
	a.StoreAt(off, v)
}

// LoadAt reads the element at storage offset off.
func (a *Array) LoadAt(off int) float32 {
	switch a.dtype {
	case Float32:
		return a.f32[off]
	case Float64:
		return float32(a.f64[off])
	default:
		return a.f16[off].Float32()
	}
}

// StoreAt writes the element at storage offset off, rounding to the Array's dtype.
func (a *Array) StoreAt(off int, v float32) {
	switch a.dtype {
	case Float32:
		a.f32[off] = v
	case Float64:
		a.f64[off] = float64(v)
	default:
		a.f16[off] = toHalf(v)
	}
}

func (a *Array) loadAt64(off int) float64 {
	if a.dtype == Float64 {
		return a.f64[off]
	}
	return float64(a.LoadAt(off))
}

func (a *Array) storeAt64(off int, v float64) {
	if a.dtype == Float64 {
		a.f64[off] = v
		return
	}
	a.StoreAt(off, float32(v))
}

// AddAt atomically adds delta to the element at storage offset off.
// Concurrent AddAt calls on the same element are safe; their order only
// affects floating-point rounding. Float16 storage has no atomic add.
func (a *Array) AddAt(off int, delta float64) {
	switch a.dtype {
	case Float32:
		atomicAddFloat32(&a.f32[off], float32(delta))
	case Float64:
		atomicAddFloat64(&a.f64[off], delta)
	default:
		panic("array: atomic add is not supported for float16 storage")
	}
}

// Float32s returns a row-major copy of the values.
func (a *Array) Float32s() []float32 {
	out := make([]float32, a.NumElements())
	a.each(func(i, off int) { out[i] = a.LoadAt(off) })
	return out
}

// Float64s returns a row-major copy of the values in float64.
func (a *Array) Float64s() []float64 {
	out := make([]float64, a.NumElements())
	a.each(func(i, off int) { out[i] = a.loadAt64(off) })
	return out
}

// SetFloat64s overwrites the values in row-major order, rounding to the Array's dtype.
func (a *Array) SetFloat64s(values []float64) error {
	if len(values) != a.NumElements() {
		return errors.Wrapf(ErrShapeMismatch, "set %d values into array of shape %s", len(values), a.shape)
	}
	a.each(func(i, off int) { a.storeAt64(off, values[i]) })
	return nil
}

// Fill sets every element to v.
func (a *Array) Fill(v float32) {
	if a.Contiguous() && a.dtype == Float32 {
		data := a.f32[a.offset : a.offset+a.NumElements()]
		parallel.For(len(data), func(i int) { data[i] = v }, parallel.DefaultConfig())
		return
	}
	a.each(func(_, off int) { a.StoreAt(off, v) })
}

// Zero sets every element to 0.
func (a *Array) Zero() {
	a.Fill(0)
}

// ZeroGrad clears the gradient buffer, if any.
func (a *Array) ZeroGrad() {
	if a.grad != nil {
		a.grad.Zero()
	}
}

// CopyFrom copies the values of src, which must have the same shape.
func (a *Array) CopyFrom(src *Array) error {
	if !a.shape.Equal(src.shape) {
		return errors.Wrapf(ErrShapeMismatch, "copy from %s into %s", src.shape, a.shape)
	}
	values := src.Float64s()
	a.each(func(i, off int) { a.storeAt64(off, values[i]) })
	return nil
}

// ToSpace returns a copy of the values in the given memory space, without gradient.
func (a *Array) ToSpace(space Space) *Array {
	out := newStorage(a.shape, a.dtype, space)
	values := a.Float64s()
	out.each(func(i, off int) { out.storeAt64(off, values[i]) })
	return out
}

// Flatten returns a 1-D view sharing values and gradient with a.
func (a *Array) Flatten() (*Array, error) {
	if !a.Contiguous() {
		return nil, errors.Wrapf(ErrShapeMismatch, "cannot flatten non-contiguous array of shape %s", a.shape)
	}
	view := *a
	view.shape = Shape{a.NumElements()}
	view.strides = []int{1}
	if a.grad != nil {
		g, err := a.grad.Flatten()
		if err != nil {
			return nil, err
		}
		view.grad = g
	}
	return &view, nil
}

// T returns the transposed view of a 2-D Array.
func (a *Array) T() (*Array, error) {
	if len(a.shape) != 2 {
		return nil, errors.Wrapf(ErrShapeMismatch, "transpose needs a 2-D array, got shape %s", a.shape)
	}
	view := *a
	view.shape = Shape{a.shape[1], a.shape[0]}
	view.strides = []int{a.strides[1], a.strides[0]}
	if a.grad != nil {
		g, err := a.grad.T()
		if err != nil {
			return nil, err
		}
		view.grad = g
	}
	return &view, nil
}

// CheckFinite returns ErrNumericDivergence if any value is NaN or infinite.
func (a *Array) CheckFinite() error {
	bad, first := 0, -1
	a.each(func(i, off int) {
		v := a.loadAt64(off)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if first < 0 {
				first = i
			}
			bad++
		}
	})
	if bad > 0 {
		return errors.Wrapf(ErrNumericDivergence, "%d of %d elements of array %s are not finite (first at flat index %d)",
			bad, a.NumElements(), a.shape, first)
	}
	return nil
}

// each calls fn with the row-major flat index and the storage offset of every element.
func (a *Array) each(fn func(i, off int)) {
	n := a.NumElements()
	if a.Contiguous() {
		for i := 0; i < n; i++ {
			fn(i, a.offset+i)
		}
		return
	}
	idx := make([]int, len(a.shape))
	for i := 0; i < n; i++ {
		off := a.offset
		for d, x := range idx {
			off += x * a.strides[d]
		}
		fn(i, off)
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < a.shape[d] {
				break
			}
			idx[d] = 0
		}
	}
}
