package history

import "errors"

var (
	ErrStoreClosed  = errors.New("archive store is closed")
	ErrWriteTimeout = errors.New("archive write timed out")
)
