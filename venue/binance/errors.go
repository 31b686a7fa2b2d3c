package binance

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/epic1st/xchg"
)

// binanceErrorBody is Binance's `{code, msg}` error envelope.
type binanceErrorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// decodeError best-effort parses a Binance error body; an unparsable body
// yields empty strings rather than an error.
func decodeError(body []byte) (code, message string) {
	var e binanceErrorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return "", ""
	}
	return strconv.Itoa(e.Code), e.Msg
}

// classifyGeneric maps an HTTP status and Binance error code to the
// venue-agnostic RestErrorKind.
func classifyGeneric(httpStatus int, code, message string) xchg.GenericRestKind {
	if httpStatus == 429 || httpStatus == 418 || code == "-1003" || code == "-1015" {
		return xchg.TooManyRequests
	}
	if code == "-1007" || code == "-1006" {
		return xchg.UnknownStatus
	}
	if code == "-1021" {
		return xchg.OutsideTimeWindow
	}
	if httpStatus >= 500 || code == "-1001" {
		return xchg.OtherSide
	}
	return xchg.InvalidRequest
}

// RefineOrder refines a failed order-placement request. A rejection
// carrying "Account has insufficient balance" maps to InsufficientBalance,
// not DuplicateOrder -- the two share a venue error code but are distinct
// failure modes.
func RefineOrder(httpStatus int, code, message string) xchg.RestErrorKind {
	orderRejected := code == "-1010" || code == "-2010"
	if orderRejected && strings.HasPrefix(message, "Duplicate order") {
		return xchg.DuplicateOrder
	}
	if orderRejected && strings.HasPrefix(message, "Account has insufficient balance") {
		return xchg.InsufficientBalance
	}
	if orderRejected && strings.HasPrefix(message, "Order would immediately match and take") {
		return xchg.WouldTakeLiquidity
	}
	return classifyGeneric(httpStatus, code, message)
}

// RefineCancel refines a failed cancel request.
func RefineCancel(httpStatus int, code, message string) xchg.RestErrorKind {
	unknownOrder := (code == "-1010" || code == "-2011") && strings.HasPrefix(message, "Unknown order")
	if code == "-2013" || unknownOrder {
		return xchg.UnknownOrder
	}
	return classifyGeneric(httpStatus, code, message)
}
