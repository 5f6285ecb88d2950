package client

import "errors"

var (
	ErrChannelClosed    = errors.New("snapshot channel is closed")
	ErrSendTimeout      = errors.New("timed out queueing outbound message")
	ErrNoPendingMessage = errors.New("no pending outbound message to send")
	ErrNoIdentity       = errors.New("session identity not established yet")
	ErrRegistryClosed   = errors.New("instance registry is closed")
	ErrAutoAlreadyOn    = errors.New("auto-message mode already running")
)
