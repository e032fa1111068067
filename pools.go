package kvrows

import "sync"

// arrayOfBytesPool holds key batches for deletePrefix.
var arrayOfBytesPool = &sync.Pool{
	New: func() any {
		return make([][]byte, 0, deleteBatchSize)
	},
}

func releaseArrayOfBytes(a [][]byte) {
	clear(a)
	arrayOfBytesPool.Put(a[:0])
}

// valueBytesPool holds encoding buffers. A buffer may be released once the
// write transaction that stored it has finished.
var valueBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

func releaseValueBytes(b []byte) {
	if cap(b) > 1<<20 {
		return
	}
	valueBytesPool.Put(b[:0])
}
