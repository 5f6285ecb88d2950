package protocol

// Validate checks a decoded snapshot before it is handed to the view-state
// layer. A snapshot that fails here is skipped, never applied partially.
func (s *Snapshot) Validate() error {
	if s.WSCount < 1 {
		return ErrInvalidWSCount
	}
	if s.WSID < 1 {
		return ErrInvalidWSID
	}
	prev := -1
	for _, core := range s.CPUData {
		if core.Core <= prev {
			return ErrInvalidCoreOrder
		}
		prev = core.Core
		if core.Percent < 0 || core.Percent > 100 {
			return ErrInvalidPercent
		}
	}
	if s.MemData.Used > s.MemData.Total {
		return ErrInvalidMemory
	}
	return nil
}

// Validate checks an outbound envelope. Empty names and empty chat bodies
// are rejected locally and never reach the wire.
func (e *Envelope) Validate() error {
	if e.ID < 1 {
		return ErrInvalidWSID
	}
	if !IsValidName(e.Name) {
		if e.Name == "" {
			return ErrEmptyName
		}
		return ErrNameTooLong
	}
	if e.Message != nil {
		if *e.Message == "" {
			return ErrEmptyBody
		}
		if len(*e.Message) > MaxBodyBytes {
			return ErrBodyTooLarge
		}
	}
	return nil
}

// MaxBodyBytes bounds a single chat body on the wire.
const MaxBodyBytes = 4096

// IsValidName reports whether a display name is acceptable: non-empty and
// at most 50 characters.
func IsValidName(name string) bool {
	return len(name) >= 1 && len(name) <= 50
}
