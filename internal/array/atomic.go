package array

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// atomicAddFloat32 adds delta to *p with a compare-and-swap loop.
func atomicAddFloat32(p *float32, delta float32) {
	//nolint:gosec // float32 and uint32 share size and alignment
	addr := (*uint32)(unsafe.Pointer(p))
	for {
		old := atomic.LoadUint32(addr)
		next := math.Float32bits(math.Float32frombits(old) + delta)
		if atomic.CompareAndSwapUint32(addr, old, next) {
			return
		}
	}
}

// atomicAddFloat64 adds delta to *p with a compare-and-swap loop.
func atomicAddFloat64(p *float64, delta float64) {
	//nolint:gosec // float64 and uint64 share size and alignment
	addr := (*uint64)(unsafe.Pointer(p))
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(addr, old, next) {
			return
		}
	}
}
