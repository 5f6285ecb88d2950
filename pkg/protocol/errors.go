package protocol

import "errors"

var (
	ErrMalformedPair    = errors.New("pair field must be a two-element array")
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrNameTooLong      = errors.New("name must be at most 50 characters")
	ErrEmptyBody        = errors.New("message body cannot be empty")
	ErrBodyTooLarge     = errors.New("message body exceeds 4KB limit")
	ErrInvalidWSCount   = errors.New("ws_count must be at least 1")
	ErrInvalidWSID      = errors.New("ws_id must be positive")
	ErrInvalidCoreOrder = errors.New("cpu_data core indexes must be ordered and unique")
	ErrInvalidPercent   = errors.New("cpu utilization must be between 0 and 100")
	ErrInvalidMemory    = errors.New("used memory cannot exceed total")
	ErrInvalidSenderID  = errors.New("sender id does not match session id")
)
