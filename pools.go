package rset

import "sync"

var keyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 256)
	},
}

func releaseKeyBytes(b []byte) {
	if cap(b) <= 65536 {
		keyBytesPool.Put(b[:0])
	}
}

var positionsPool = &sync.Pool{
	New: func() any {
		return make([]int, 0, 1024)
	},
}

func releasePositions(p []int) {
	positionsPool.Put(p[:0])
}
