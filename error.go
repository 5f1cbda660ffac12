package orderproc

import "errors"

var (
	ErrInvalidParam = errors.New("the param is invalid")
	ErrTimeout      = errors.New("timeout")
	ErrShutdown     = errors.New("pipeline is shutting down")
	ErrNotFound     = errors.New("not found")
)
