package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity (blob, user, listing item) does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique attribute is already taken.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredentials is returned on a phone/PIN mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden is returned when an authenticated caller acts for someone else.
	ErrForbidden = errors.New("forbidden")

	ErrUpload      = errors.New("blob upload failed")
	ErrNetwork     = errors.New("blob store unreachable")
	ErrInvalidCID  = errors.New("invalid cid")
	ErrCIDMismatch = errors.New("blob content does not match cid")
	ErrCIDTooLong  = errors.New("cid exceeds ledger data entry size")
	ErrKeyTooLong  = errors.New("ledger key exceeds data entry size")
)

// ValidationError describes malformed client input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AnchorError reports a record that could not be anchored.
// CID is set when the blob was uploaded but the ledger write failed.
type AnchorError struct {
	Namespace string
	CID       string
	Err       error
}

func (e *AnchorError) Error() string {
	if e.CID != "" {
		return fmt.Sprintf("failed to anchor %s record %s: %v", e.Namespace, e.CID, e.Err)
	}
	return fmt.Sprintf("failed to anchor %s record: %v", e.Namespace, e.Err)
}

func (e *AnchorError) Unwrap() error { return e.Err }

// Orphaned reports whether a blob was left uploaded without a ledger pointer.
func (e *AnchorError) Orphaned() bool { return e.CID != "" }

// MintError reports the failed certificate minting step.
type MintError struct {
	Step string
	Err  error
}

func (e *MintError) Error() string {
	return fmt.Sprintf("failed to mint certificate at %s: %v", e.Step, e.Err)
}

func (e *MintError) Unwrap() error { return e.Err }
