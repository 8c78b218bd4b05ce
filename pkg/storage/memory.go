package storage

import (
	"fmt"
	"math"
	"runtime"
	"runtime/debug"

	"github.com/pbnjay/memory"
)

// MemoryGuard refuses to start a parse when the expected cost of the parse
// does not fit. With a Limit the heap plus the cost must stay below it;
// without one the cost must fit into the free system memory. A guard with
// neither a limit nor a free memory source is disabled.
type MemoryGuard struct {
	Limit  uint64  // bytes
	Factor float64 // expected heap use per input byte

	heap func() uint64
	free func() uint64
}

const defaultFactor = 6

// NewMemoryGuard uses limitMB when positive, then the runtime soft memory
// limit (GOMEMLIMIT), and otherwise the free system memory at check time.
func NewMemoryGuard(limitMB int, factor float64) *MemoryGuard {
	if factor <= 0 {
		factor = defaultFactor
	}
	g := &MemoryGuard{Factor: factor, heap: heapInUse}
	switch soft := debug.SetMemoryLimit(-1); {
	case limitMB > 0:
		g.Limit = uint64(limitMB) << 20
	case soft > 0 && soft != math.MaxInt64:
		g.Limit = uint64(soft)
	default:
		g.free = memory.FreeMemory
	}
	return g
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// Check returns ErrLowMemory when parsing size bytes is unsafe.
func (g *MemoryGuard) Check(size int64) error {
	if g == nil {
		return nil
	}
	need := uint64(float64(size) * g.Factor)
	if g.Limit == 0 {
		if g.free == nil {
			return nil
		}
		// 0 means the platform cannot report it
		free := g.free()
		if free > 0 && need > free {
			return fmt.Errorf("%w: need %d MB, %d MB free", ErrLowMemory, need>>20, free>>20)
		}
		return nil
	}
	heap := heapInUse
	if g.heap != nil {
		heap = g.heap
	}
	used := heap()
	if used+need > g.Limit {
		free := uint64(0)
		if used < g.Limit {
			free = g.Limit - used
		}
		return fmt.Errorf("%w: need %d MB, %d MB free", ErrLowMemory, need>>20, free>>20)
	}
	return nil
}
