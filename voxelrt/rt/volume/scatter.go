package volume

import (
	"fmt"
	"sync"
)

const scatterStripes = 64

// ScatterBuffer is the host-side write target of R³ RGBA cells. Writers may
// race on a cell; each write is whole (no torn channels) and whichever
// lands last wins.
type ScatterBuffer struct {
	Resolution int

	cells   [][4]float32
	stripes [scatterStripes]sync.Mutex
}

func NewScatterBuffer(resolution int) (*ScatterBuffer, error) {
	if resolution < 1 {
		return nil, fmt.Errorf("scatter buffer resolution %d: must be at least 1", resolution)
	}
	return &ScatterBuffer{
		Resolution: resolution,
		cells:      make([][4]float32, resolution*resolution*resolution),
	}, nil
}

func (b *ScatterBuffer) Len() int {
	return len(b.cells)
}

// Write stores v at a linear index. Out-of-range indices are dropped, the
// way an unchecked GPU store past the buffer is discarded.
func (b *ScatterBuffer) Write(index int, v [4]float32) {
	if index < 0 || index >= len(b.cells) {
		return
	}
	mu := &b.stripes[index%scatterStripes]
	mu.Lock()
	b.cells[index] = v
	mu.Unlock()
}

// Snapshot copies every cell out. Call it once writers are done.
func (b *ScatterBuffer) Snapshot() [][4]float32 {
	for i := range b.stripes {
		b.stripes[i].Lock()
	}
	out := make([][4]float32, len(b.cells))
	copy(out, b.cells)
	for i := range b.stripes {
		b.stripes[i].Unlock()
	}
	return out
}
