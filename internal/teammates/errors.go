package teammates

import (
	"errors"
	"fmt"
)

// ErrDataIntegrity is matched by every DataIntegrityError
var ErrDataIntegrity = errors.New("player history data integrity failure")

// DataIntegrityError reports history data that cannot produce a tenure set.
// It aborts the whole relation build.
type DataIntegrityError struct {
	PlayerID string
	Reason   string
	Err      error
}

func (e *DataIntegrityError) Error() string {
	msg := fmt.Sprintf("player %s: %s", e.PlayerID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataIntegrityError) Unwrap() error {
	return e.Err
}

func (e *DataIntegrityError) Is(target error) bool {
	return target == ErrDataIntegrity
}

func integrityError(playerID, reason string, err error) error {
	return &DataIntegrityError{PlayerID: playerID, Reason: reason, Err: err}
}
