package pools

import (
	"sync"
	"sync/atomic"
)

// Buffer pool sizes
const (
	SmallBufferSize  = 512       // status line and a few headers
	MediumBufferSize = 4 * 1024  // typical JSON bodies
	LargeBufferSize  = 32 * 1024 // larger payloads
)

// BufferPool manages encode buffers in three size tiers. Buffers above
// LargeBufferSize are allocated directly and never pooled.
type BufferPool struct {
	tiers [3]sync.Pool

	// Statistics
	gets      atomic.Uint64
	hits      [3]atomic.Uint64
	oversized atomic.Uint64
}

var tierSizes = [3]int{SmallBufferSize, MediumBufferSize, LargeBufferSize}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	bp := &BufferPool{}
	for i, size := range tierSizes {
		size := size
		bp.tiers[i].New = func() any {
			buf := make([]byte, 0, size)
			return &buf
		}
	}
	return bp
}

// Get acquires an empty buffer with capacity for at least estimatedSize bytes
func (bp *BufferPool) Get(estimatedSize int) *[]byte {
	bp.gets.Add(1)

	for i, size := range tierSizes {
		if estimatedSize <= size {
			bp.hits[i].Add(1)
			return bp.tiers[i].Get().(*[]byte)
		}
	}

	bp.oversized.Add(1)
	buf := make([]byte, 0, estimatedSize)
	return &buf
}

// Put returns a buffer to the tier matching its capacity
func (bp *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}

	*buf = (*buf)[:0]
	c := cap(*buf)
	for i := len(tierSizes) - 1; i >= 0; i-- {
		if c >= tierSizes[i] {
			if c <= LargeBufferSize {
				bp.tiers[i].Put(buf)
			}
			return
		}
	}
}

// Stats returns buffer pool statistics
func (bp *BufferPool) Stats() BufferStats {
	return BufferStats{
		SmallHits:  bp.hits[0].Load(),
		MediumHits: bp.hits[1].Load(),
		LargeHits:  bp.hits[2].Load(),
		Oversized:  bp.oversized.Load(),
		TotalGets:  bp.gets.Load(),
	}
}

// BufferStats contains buffer pool statistics
type BufferStats struct {
	SmallHits  uint64 `json:"small_hits"`
	MediumHits uint64 `json:"medium_hits"`
	LargeHits  uint64 `json:"large_hits"`
	Oversized  uint64 `json:"oversized"`
	TotalGets  uint64 `json:"total_gets"`
}

// Global buffer pool
var globalBufferPool = NewBufferPool()

// AcquireBuffer gets a buffer from the global pool
func AcquireBuffer(estimatedSize int) *[]byte {
	return globalBufferPool.Get(estimatedSize)
}

// ReleaseBuffer returns a buffer to the global pool
func ReleaseBuffer(buf *[]byte) {
	globalBufferPool.Put(buf)
}

// GetBufferStats returns statistics for the global buffer pool
func GetBufferStats() BufferStats {
	return globalBufferPool.Stats()
}
