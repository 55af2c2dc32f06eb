package ops

// accumulate adds src into dst element-wise.
func accumulate(dst, src []float32) {
	for i, v := range src {
		dst[i] += v
	}
}
