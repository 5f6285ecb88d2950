package server

import "errors"

var (
	ErrUnknownClient      = errors.New("client id is not registered")
	ErrServerNotRunning   = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
)
