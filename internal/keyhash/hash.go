package keyhash

import (
	"hash"
	"hash/fnv"
	"sync"
)

// intSize is the size of an int in bits.
const intSize = 32 << (^uint(0) >> 63)

// String returns the FNV-1a hash of s sized to the platform int.
func String(s string) int {
	if intSize == 32 {
		h := hash32Pool.Get()
		defer hash32Pool.Put(h)
		_, _ = h.Write([]byte(s))
		return int(h.Sum32())
	}

	h := hash64Pool.Get()
	defer hash64Pool.Put(h)
	_, _ = h.Write([]byte(s))
	return int(h.Sum64())
}

// Bucket maps s onto one of n buckets.
func Bucket(s string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(uint(String(s)) % uint(n))
}

var hash32Pool = &resettablePool[hash.Hash32]{
	pool: sync.Pool{
		New: func() any {
			return fnv.New32a()
		},
	},
}

var hash64Pool = &resettablePool[hash.Hash64]{
	pool: sync.Pool{
		New: func() any {
			return fnv.New64a()
		},
	},
}

type resetter interface {
	Reset()
}

// resettablePool resets objects before returning them to the pool.
type resettablePool[H resetter] struct {
	pool sync.Pool
}

func (p *resettablePool[H]) Put(h H) {
	h.Reset()
	p.pool.Put(h)
}

func (p *resettablePool[H]) Get() H {
	return p.pool.Get().(H)
}
