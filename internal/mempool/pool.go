// Package mempool recycles the per-pixel scratch buffers used by the mask and
// denoise stages so that back-to-back measurements do not churn the GC.
package mempool

import "sync"

const step = 4096

// sizeClass rounds n up to the next multiple of step so that images of
// similar size share a bucket.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

// Pool is a bucketed pool of slices of T.
type Pool[T any] struct {
	buckets sync.Map // size class -> *sync.Pool
}

func (p *Pool[T]) bucket(cls int) *sync.Pool {
	v, _ := p.buckets.LoadOrStore(cls, &sync.Pool{New: func() any {
		s := make([]T, cls)
		return &s
	}})
	return v.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// Get returns a zeroed slice of length n.
func (p *Pool[T]) Get(n int) []T {
	if n <= 0 {
		return nil
	}
	cls := sizeClass(n)
	sp, ok := p.bucket(cls).Get().(*[]T)
	if !ok || cap(*sp) < cls {
		return make([]T, n)
	}
	buf := (*sp)[:n]
	clear(buf)
	return buf
}

// Put hands buf back for reuse. Nil and foreign-sized slices are ignored.
func (p *Pool[T]) Put(buf []T) {
	if buf == nil {
		return
	}
	c := cap(buf)
	if c%step != 0 {
		return
	}
	buf = buf[:c]
	p.bucket(c).Put(&buf)
}

var (
	bools    Pool[bool]
	float32s Pool[float32]
	int32s   Pool[int32]
)

// GetBool returns a zeroed []bool of length n.
func GetBool(n int) []bool { return bools.Get(n) }

// PutBool returns a buffer obtained from GetBool.
func PutBool(buf []bool) { bools.Put(buf) }

// GetFloat32 returns a zeroed []float32 of length n.
func GetFloat32(n int) []float32 { return float32s.Get(n) }

// PutFloat32 returns a buffer obtained from GetFloat32.
func PutFloat32(buf []float32) { float32s.Put(buf) }

// GetInt32 returns a zeroed []int32 of length n.
func GetInt32(n int) []int32 { return int32s.Get(n) }

// PutInt32 returns a buffer obtained from GetInt32.
func PutInt32(buf []int32) { int32s.Put(buf) }
