package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// RecordID identifies an append-only community record (submission, proposal,
// feedback).
type RecordID struct {
	value string
}

// NewRecordID creates a new random RecordID
func NewRecordID() RecordID {
	return RecordID{value: uuid.New().String()}
}

// ParseRecordID accepts an id generated by NewRecordID.
func ParseRecordID(id string) (RecordID, error) {
	if id == "" {
		return RecordID{}, errors.New("record ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return RecordID{}, errors.New("record ID must be a valid UUID")
	}
	return RecordID{value: id}, nil
}

func (id RecordID) String() string { return id.value }
