package gdax

import (
	"encoding/json"
	"strings"

	"github.com/epic1st/xchg"
)

// gdaxErrorBody is GDAX's `{message}` error envelope.
type gdaxErrorBody struct {
	Message string `json:"message"`
}

// decodeError best-effort parses a GDAX error body; an unparsable body
// yields empty strings, never an error of its own.
func decodeError(body []byte) (code, message string) {
	var e gdaxErrorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return "", ""
	}
	return "", e.Message
}

// classifyGeneric maps an HTTP status and decoded message to the
// venue-agnostic RestErrorKind.
func classifyGeneric(httpStatus int, code, message string) xchg.GenericRestKind {
	if httpStatus == 429 {
		return xchg.TooManyRequests
	}
	if httpStatus == 504 {
		return xchg.UnknownStatus
	}
	if httpStatus == 500 {
		return xchg.OtherSide
	}
	if strings.HasPrefix(message, "request timestamp expired") {
		return xchg.OutsideTimeWindow
	}
	return xchg.InvalidRequest
}

// RefineOrder refines a failed order-placement request.
func RefineOrder(httpStatus int, code, message string) xchg.RestErrorKind {
	if strings.HasPrefix(message, "Insufficient funds") {
		return xchg.InsufficientBalance
	}
	return classifyGeneric(httpStatus, code, message)
}

// RefineCancel refines a failed cancel request.
func RefineCancel(httpStatus int, code, message string) xchg.RestErrorKind {
	if httpStatus == 404 || strings.HasPrefix(message, "Order already done") {
		return xchg.UnknownOrder
	}
	return classifyGeneric(httpStatus, code, message)
}
