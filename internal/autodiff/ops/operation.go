// Package ops defines the operation records kept on the differentiation tape.
//
// Each tile operator executed inside a recorded launch appends exactly one
// record per block (per lane for the per-lane loss). A record keeps the
// tiles and values it read and produced; because tiles live in arenas the
// tape retains, the reverse pass never re-runs the forward computation.
//
// The set of records is closed: Operation has an unexported method, and every
// record carries a Kind tag.
package ops

import "github.com/born-ml/tilegrad/internal/parallel"

// Kind tags an operation record.
type Kind int

// Operation kinds.
const (
	KindLoad Kind = iota
	KindStore
	KindMatMul
	KindAdd
	KindMap
	KindBroadcast
	KindTileOfValues
	KindValueFromTile
	KindSquaredError
)

var kindNames = [...]string{
	KindLoad:          "tile_load",
	KindStore:         "tile_store",
	KindMatMul:        "tile_matmul",
	KindAdd:           "tile_add",
	KindMap:           "tile_map",
	KindBroadcast:     "tile_broadcast",
	KindTileOfValues:  "tile",
	KindValueFromTile: "untile",
	KindSquaredError:  "squared_error",
}

// String returns the operator name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Operation is a recorded operator with its adjoint rule.
type Operation interface {
	// Kind returns the operator tag.
	Kind() Kind

	// Backward applies the adjoint rule: it reads the adjoint of the record's
	// output and accumulates into the adjoints of its inputs. Array gradients
	// are updated atomically; tile and value adjoints belong to one block and
	// are only touched by the single goroutine replaying the tape.
	Backward(cfg parallel.Config)

	// ZeroAdjoints clears the intermediate adjoints owned by this record,
	// so that a retained log can be replayed again.
	ZeroAdjoints()

	operation()
}
