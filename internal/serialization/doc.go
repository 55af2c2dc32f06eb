// Package serialization saves and loads parameter Arrays in the SafeTensors
// layout:
//
//	[8 bytes: header size N (uint64 LE)]
//	[N bytes: JSON header]
//	[tensor data: raw little-endian bytes, tensors in name order]
//
// The header maps every tensor name to its dtype ("F32", "F64", "F16"),
// shape and [begin, end) byte offsets in the data section. The optional
// "__metadata__" entry holds string metadata; the writer stores the SHA-256
// of the data section there and the reader verifies it.
//
// Example usage:
//
//	err := serialization.WriteSafeTensors("mlp.safetensors", map[string]*array.Array{
//	    "layer0.weight": w0,
//	    "layer0.bias":   b0,
//	}, map[string]string{"iterations": "200"})
//
//	tensors, metadata, err := serialization.ReadSafeTensors("mlp.safetensors")
package serialization
