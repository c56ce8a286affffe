package utils

import "github.com/valyala/bytebufferpool"

// Pooled byte buffers for query normalization and consensus answer
// canonicalization. bytebufferpool handles size-class management so repeated
// normalization of large prompts does not fragment the heap.
var pool bytebufferpool.Pool

// Get retrieves a buffer from the pool.
func Get() *bytebufferpool.ByteBuffer {
	return pool.Get()
}

// Put returns a buffer to the pool.
func Put(buf *bytebufferpool.ByteBuffer) {
	pool.Put(buf)
}
