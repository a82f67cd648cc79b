package testutils

import (
	"bytes"
	"sync"
)

// SafeWriteBuffer collects log output written from more than one goroutine.
type SafeWriteBuffer struct {
	bufferLock sync.Mutex
	buffer     bytes.Buffer
}

func (swb *SafeWriteBuffer) Write(p []byte) (n int, err error) {
	swb.bufferLock.Lock()
	defer swb.bufferLock.Unlock()
	return swb.buffer.Write(p)
}

func (swb *SafeWriteBuffer) Bytes() []byte {
	swb.bufferLock.Lock()
	defer swb.bufferLock.Unlock()
	return append([]byte(nil), swb.buffer.Bytes()...)
}

func (swb *SafeWriteBuffer) String() string {
	return string(swb.Bytes())
}

func (swb *SafeWriteBuffer) Len() int {
	swb.bufferLock.Lock()
	defer swb.bufferLock.Unlock()
	return swb.buffer.Len()
}
