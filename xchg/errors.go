// Package xchg provides the venue-agnostic framework shared by every
// adapter: the unified error taxonomy, the notification model, the
// WebSocket connection state machine, the REST request primitive, and the
// live order book.
package xchg

import "fmt"

// RestErrorKind is the sealed union of error categories a failed REST call
// can be classified into: the five venue-agnostic categories, or a
// request-specific refinement (OrderErrorKind, CancelErrorKind). Each
// venue adapter's errors.go produces one of these from its own wire error
// shape; callers discriminate with a type switch.
type RestErrorKind interface {
	restErrorKind()
}

// GenericRestKind is the venue-agnostic classification consulted for every
// failed request regardless of what it was trying to do.
type GenericRestKind int

const (
	TooManyRequests GenericRestKind = iota
	UnknownStatus
	InvalidRequest
	OtherSide
	OutsideTimeWindow
)

func (GenericRestKind) restErrorKind() {}

func (k GenericRestKind) String() string {
	switch k {
	case TooManyRequests:
		return "too_many_requests"
	case UnknownStatus:
		return "unknown_status"
	case InvalidRequest:
		return "invalid_request"
	case OtherSide:
		return "other_side"
	case OutsideTimeWindow:
		return "outside_time_window"
	default:
		return "unknown"
	}
}

// OrderErrorKind refines a failed order-placement request beyond the
// generic categories.
type OrderErrorKind int

const (
	InsufficientBalance OrderErrorKind = iota
	DuplicateOrder
	WouldTakeLiquidity
)

func (OrderErrorKind) restErrorKind() {}

func (k OrderErrorKind) String() string {
	switch k {
	case InsufficientBalance:
		return "insufficient_balance"
	case DuplicateOrder:
		return "duplicate_order"
	case WouldTakeLiquidity:
		return "would_take_liquidity"
	default:
		return "unknown"
	}
}

// CancelErrorKind refines a failed cancel request beyond the generic
// categories.
type CancelErrorKind int

const (
	UnknownOrder CancelErrorKind = iota
)

func (CancelErrorKind) restErrorKind() {}

func (k CancelErrorKind) String() string {
	if k == UnknownOrder {
		return "unknown_order"
	}
	return "unknown"
}

// RestError is returned whenever a REST call completed with a non-2xx
// response. Kind carries the unified classification; VenueCode/
// VenueMessage carry the raw venue-reported error body as cause.
type RestError struct {
	Kind         RestErrorKind
	HTTPStatus   int
	VenueCode    string
	VenueMessage string
}

func (e *RestError) Error() string {
	return fmt.Sprintf("rest error: kind=%v http_status=%d venue_code=%s venue_message=%s",
		e.Kind, e.HTTPStatus, e.VenueCode, e.VenueMessage)
}

// RequestError wraps a failure that never produced a classifiable REST
// response at all: DNS failure, connection reset, timeout, body decode
// failure.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return fmt.Sprintf("request error: %v", e.Err) }
func (e *RequestError) Unwrap() error { return e.Err }

// GenericClassifier maps a venue's raw REST error body and HTTP status
// into the generic, request-agnostic RestErrorKind. No type in this module
// implements it (or OrderClassifier/CancelClassifier): venue adapters pass
// plain functions to NewRestClient and RestClient.Do instead.
type GenericClassifier interface {
	ClassifyGeneric(httpStatus int, code, message string) GenericRestKind
}

// OrderClassifier additionally refines the generic classification for a
// failed order-placement call.
type OrderClassifier interface {
	ClassifyOrder(httpStatus int, code, message string) RestErrorKind
}

// CancelClassifier additionally refines the generic classification for a
// failed cancel call.
type CancelClassifier interface {
	ClassifyCancel(httpStatus int, code, message string) RestErrorKind
}
