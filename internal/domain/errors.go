package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures returned across the service boundary
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindGateway       ErrorKind = "gateway"
	KindTimeout       ErrorKind = "timeout"
	KindInternal      ErrorKind = "internal"
)

// User-facing messages
const (
	MsgForbidden            = "Anda tidak mempunyai kebenaran untuk tindakan ini"
	MsgInvalidOrganizerCode = "Kod penganjur tidak sah atau tidak aktif"
	MsgLinkPending          = "Permohonan anda sedang disemak oleh penganjur"
	MsgLinkApproved         = "Anda sudah diluluskan oleh penganjur ini"
	MsgLinkNotFound         = "Permohonan tidak dijumpai"
	MsgLinkNotPending       = "Permohonan ini telah diproses"
	MsgTenantNotFound       = "Peniaga tidak dijumpai"
	MsgTransactionNotFound  = "Rekod pembayaran tidak dijumpai"
	MsgTransactionReviewed  = "Transaksi ini telah diproses"
	MsgTimeout              = "Sambungan perlahan, sila cuba lagi"
	MsgInternal             = "Ralat sistem, sila cuba lagi"
	MsgGateway              = "Pembayaran gagal dimulakan, sila cuba lagi"
)

// Error is the typed failure every service operation returns
type Error struct {
	Kind    ErrorKind
	Message string
	// CurrentStatus lets callers branch on a conflict without another query
	CurrentStatus string
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewForbiddenError creates an authorization error with the generic denial message
func NewForbiddenError() *Error {
	return &Error{Kind: KindAuthorization, Message: MsgForbidden}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewConflictError creates a conflict error carrying the current state
func NewConflictError(message, currentStatus string) *Error {
	return &Error{Kind: KindConflict, Message: message, CurrentStatus: currentStatus}
}

// NewGatewayError wraps an upstream provider failure
func NewGatewayError(err error) *Error {
	return &Error{Kind: KindGateway, Message: MsgGateway, Err: err}
}

// NewTimeoutError wraps a deadline failure
func NewTimeoutError(err error) *Error {
	return &Error{Kind: KindTimeout, Message: MsgTimeout, Err: err}
}

// NewInternalError wraps an unexpected failure
func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Err: err}
}

// KindOf returns the kind of err, KindInternal for untyped errors
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
