package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrSequenceMismatch    = errors.New("sequence number mismatch")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOperation           = errors.New("operation failed")
	ErrTimeout             = errors.New("transaction validity window expired")
	ErrFunding             = errors.New("account funding failed")
)

// Transaction result codes as reported by the ledger.
const (
	CodeBadSeq          = "tx_bad_seq"
	CodeTooLate         = "tx_too_late"
	CodeBadAuth         = "tx_bad_auth"
	CodeInsufficientBal = "tx_insufficient_balance"
	CodeInsufficientFee = "tx_insufficient_fee"
	CodeNoAccount       = "tx_no_source_account"
	CodeFailed          = "tx_failed"
	CodeMissingOp       = "tx_missing_operation"

	OpUnderfunded     = "op_underfunded"
	OpLowReserve      = "op_low_reserve"
	OpNoDestination   = "op_no_destination"
	OpNoTrust         = "op_no_trust"
	OpLineFull        = "op_line_full"
	OpAlreadyExists   = "op_already_exists"
	OpMalformed       = "op_malformed"
	OpBadAuth         = "op_bad_auth"
	OpNoSourceAccount = "op_no_source_account"
	OpInvalidLimit    = "op_invalid_limit"
	OpSuccess         = "op_success"
)

// SubmitError is a rejected submission with the ledger's result codes.
type SubmitError struct {
	TransactionCode string
	OperationCodes  []string
	kind            error
}

// NewSubmitError classifies the result codes into one of the package errors.
func NewSubmitError(txCode string, opCodes []string) *SubmitError {
	return &SubmitError{
		TransactionCode: txCode,
		OperationCodes:  opCodes,
		kind:            classify(txCode, opCodes),
	}
}

func (e *SubmitError) Error() string {
	if len(e.OperationCodes) == 0 {
		return fmt.Sprintf("%v: %s", e.kind, e.TransactionCode)
	}
	return fmt.Sprintf("%v: %s [%s]", e.kind, e.TransactionCode, strings.Join(e.OperationCodes, ", "))
}

func (e *SubmitError) Unwrap() error { return e.kind }

func classify(txCode string, opCodes []string) error {
	switch txCode {
	case CodeBadSeq:
		return ErrSequenceMismatch
	case CodeTooLate:
		return ErrTimeout
	case CodeInsufficientBal, CodeInsufficientFee:
		return ErrInsufficientBalance
	case CodeNoAccount:
		return ErrAccountNotFound
	}
	for _, code := range opCodes {
		if code == OpUnderfunded || code == OpLowReserve {
			return ErrInsufficientBalance
		}
	}
	return ErrOperation
}
