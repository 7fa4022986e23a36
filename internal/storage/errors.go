package storage

import (
	"errors"
	"fmt"
)

// ErrCorrupt marks persisted state that exists but cannot be decoded.
// It must never be read as "nothing paused".
var ErrCorrupt = errors.New("paused state is corrupt")

type CorruptError struct {
	Source string
	Err    error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCorrupt, e.Source, e.Err)
}

func (e *CorruptError) Unwrap() []error { return []error{ErrCorrupt, e.Err} }
