package models

import (
	"errors"
	"fmt"
)

// ErrUnknownEvent is wrapped by UnknownEventError
var ErrUnknownEvent = errors.New("unknown event type")

// DecodeError is returned for a malformed or incomplete change record
type DecodeError struct {
	EventID string
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := "failed to decode change record"
	if e.EventID != "" {
		msg += " " + e.EventID
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProvisionError is returned when a collection could not be created
type ProvisionError struct {
	Collection string
	Err        error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to provision collection %s: %v", e.Collection, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// SyncError is returned when the index rejects an upsert or delete
type SyncError struct {
	Action     Action
	Collection string
	DocumentID string
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("failed to %s document %s in %s: %v", e.Action, e.DocumentID, e.Collection, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// UnknownEventError is returned for a payload that is neither a change
// batch nor a query invocation
type UnknownEventError struct {
	Detail string
}

func (e *UnknownEventError) Error() string {
	if e.Detail == "" {
		return ErrUnknownEvent.Error()
	}
	return ErrUnknownEvent.Error() + ": " + e.Detail
}

func (e *UnknownEventError) Unwrap() error { return ErrUnknownEvent }
