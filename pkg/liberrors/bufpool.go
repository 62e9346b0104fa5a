package liberrors

import (
	"fmt"
)

// ErrBufferPoolExhausted is returned when a buffer pool cannot satisfy a rental.
type ErrBufferPoolExhausted struct {
	Size      int
	MaxSize   int
	Rented    int
	MaxRented int
}

// Error implements the error interface.
func (e ErrBufferPoolExhausted) Error() string {
	if e.MaxSize != 0 && e.Size > e.MaxSize {
		return fmt.Sprintf("buffer pool exhausted: requested size %d exceeds maximum %d", e.Size, e.MaxSize)
	}
	return fmt.Sprintf("buffer pool exhausted: %d buffers rented, maximum is %d", e.Rented, e.MaxRented)
}
