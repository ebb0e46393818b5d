package mediasync

import (
	"sync/atomic"
	"time"
)

// OperationCode identifies the caller that issued a seek. Codes derive
// from the wall clock and are strictly increasing within the process, so
// they compare by value across logs.
type OperationCode int64

var lastCode atomic.Int64

// NewOperationCode returns a fresh code.
func NewOperationCode() OperationCode {
	for {
		last := lastCode.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if lastCode.CompareAndSwap(last, next) {
			return OperationCode(next)
		}
	}
}
