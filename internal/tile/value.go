package tile

// Value is a per-lane scalar or small vector, the SIMT side of the
// tile-of-values and value-from-tile conversions. Each Value is owned by one lane.
type Value struct {
	data []float32
	grad []float32
}

// NewValue creates a zero Value of length n.
func NewValue(n int) *Value {
	return &Value{data: make([]float32, n)}
}

// ValueOf creates a Value holding a copy of xs.
func ValueOf(xs ...float32) *Value {
	v := NewValue(len(xs))
	copy(v.data, xs)
	return v
}

// Len returns the number of components.
func (v *Value) Len() int { return len(v.data) }

// At returns component i.
func (v *Value) At(i int) float32 { return v.data[i] }

// Set writes component i.
func (v *Value) Set(i int, x float32) { v.data[i] = x }

// Data returns the components. The slice aliases the Value.
func (v *Value) Data() []float32 { return v.data }

// Grad returns the adjoint of the Value, allocating it on first use.
// A Value is only touched by its lane, or by the tape when no lane runs.
func (v *Value) Grad() []float32 {
	if v.grad == nil {
		v.grad = make([]float32, len(v.data))
	}
	return v.grad
}

// ZeroGrad clears the adjoint.
func (v *Value) ZeroGrad() {
	clear(v.Grad())
}
