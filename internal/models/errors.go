package models

import "fmt"

// ErrorKind is the machine-readable category of a booking workflow failure
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInvalidInput ErrorKind = "invalid_input"
	KindUnauthorized ErrorKind = "unauthorized"
	KindGateway      ErrorKind = "gateway_error"
	KindExpired      ErrorKind = "expired"
)

// BookingError is returned by every workflow operation for expected failures.
// Two BookingErrors match under errors.Is when their codes are equal.
type BookingError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *BookingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

// Is matches on Code so sentinel values can be compared with errors.Is
func (e *BookingError) Is(target error) bool {
	t, ok := target.(*BookingError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy carrying a more specific message
func (e *BookingError) WithMessage(format string, args ...interface{}) *BookingError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy carrying the underlying cause
func (e *BookingError) Wrap(err error) *BookingError {
	cp := *e
	cp.Err = err
	return &cp
}

// ============================================================================
// SENTINEL ERRORS
// ============================================================================

var (
	// Seat ledger
	ErrSeatNotFound      = &BookingError{Kind: KindNotFound, Code: "SEAT_NOT_FOUND", Message: "seat not found"}
	ErrSeatHeld          = &BookingError{Kind: KindConflict, Code: "SEAT_HELD", Message: "seat is temporarily held by another customer, try again in a few minutes"}
	ErrSeatAlreadyBooked = &BookingError{Kind: KindConflict, Code: "SEAT_ALREADY_BOOKED", Message: "seat is already booked for this journey date"}
	ErrHoldExpired       = &BookingError{Kind: KindExpired, Code: "HOLD_EXPIRED", Message: "seat hold has expired, please start the booking again"}

	// Payments
	ErrInvalidJourneyDate      = &BookingError{Kind: KindInvalidInput, Code: "INVALID_JOURNEY_DATE", Message: "journey date is required and cannot be in the past"}
	ErrSignatureInvalid        = &BookingError{Kind: KindInvalidInput, Code: "SIGNATURE_INVALID", Message: "payment signature verification failed"}
	ErrPaymentNotFound         = &BookingError{Kind: KindNotFound, Code: "PAYMENT_NOT_FOUND", Message: "payment order not found"}
	ErrPaymentAlreadyProcessed = &BookingError{Kind: KindConflict, Code: "PAYMENT_ALREADY_PROCESSED", Message: "payment order has already been processed"}
	ErrPaymentSeatMismatch     = &BookingError{Kind: KindInvalidInput, Code: "PAYMENT_SEAT_MISMATCH", Message: "payment order was created for a different seat or journey date"}
	ErrGateway                 = &BookingError{Kind: KindGateway, Code: "GATEWAY_ERROR", Message: "payment gateway request failed"}

	// Bookings and refunds
	ErrBookingNotFound    = &BookingError{Kind: KindNotFound, Code: "BOOKING_NOT_FOUND", Message: "booking not found"}
	ErrAlreadyRefunded    = &BookingError{Kind: KindConflict, Code: "ALREADY_REFUNDED", Message: "ticket has already been refunded"}
	ErrNoPayment          = &BookingError{Kind: KindNotFound, Code: "NO_PAYMENT", Message: "no successful payment found for this booking"}
	ErrRefundGatewayError = &BookingError{Kind: KindGateway, Code: "REFUND_GATEWAY_ERROR", Message: "refund failed"}

	// Tickets
	ErrTicketNotFound    = &BookingError{Kind: KindNotFound, Code: "TICKET_NOT_FOUND", Message: "ticket not found"}
	ErrTicketAlreadyUsed = &BookingError{Kind: KindConflict, Code: "TICKET_ALREADY_USED", Message: "ticket has already been used"}
	ErrTicketRefunded    = &BookingError{Kind: KindConflict, Code: "TICKET_REFUNDED", Message: "ticket has been refunded"}

	// Generic
	ErrInvalidInput = &BookingError{Kind: KindInvalidInput, Code: "INVALID_INPUT", Message: "invalid request"}
	ErrForbidden    = &BookingError{Kind: KindUnauthorized, Code: "FORBIDDEN", Message: "you are not allowed to act on this resource"}
	ErrRateLimited  = &BookingError{Kind: KindConflict, Code: "RATE_LIMITED", Message: "too many booking attempts, please slow down"}
)
