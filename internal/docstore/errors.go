package docstore

import (
	"errors"
	"fmt"
)

// ErrInvalidPatch is returned when a partial update does not fit the record's field types.
var ErrInvalidPatch = errors.New("patch does not fit record")

// ErrInvalidDocument is returned for a payload that is not a JSON object.
var ErrInvalidDocument = errors.New("invalid document")

// FormatError rejects an import whose required collection is missing or not a list.
type FormatError struct {
	Collection string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid format: %s", e.Collection)
}

// RecordError reports a stored element that normalization could not fully
// type; the element itself is kept.
type RecordError struct {
	Collection string
	Index      int
	Err        error
}

func (e *RecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v", e.Collection, e.Err)
	}
	return fmt.Sprintf("%s[%d]: %v", e.Collection, e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
