package hitbtc

import (
	"encoding/json"
	"strconv"

	"github.com/epic1st/xchg"
)

// hitbtcErrorBody is HitBTC's `{error: {code, message, description}}`
// error envelope.
type hitbtcErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeError best-effort parses a HitBTC error body.
func decodeError(body []byte) (code, message string) {
	var e hitbtcErrorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return "", ""
	}
	if e.Error.Code == 0 && e.Error.Message == "" {
		return "", ""
	}
	return strconv.Itoa(e.Error.Code), e.Error.Message
}

// classifyGeneric maps an HTTP status to the venue-agnostic RestErrorKind.
// HitBTC's own error codes only ever refine order/cancel classification,
// never the generic one.
func classifyGeneric(httpStatus int, code, message string) xchg.GenericRestKind {
	switch httpStatus {
	case 429:
		return xchg.TooManyRequests
	case 504:
		return xchg.UnknownStatus
	case 500, 503:
		return xchg.OtherSide
	default:
		return xchg.InvalidRequest
	}
}

// RefineOrder refines a failed order-placement request: HitBTC error code
// 20001 is insufficient balance, 20008 is a duplicate order.
func RefineOrder(httpStatus int, code, message string) xchg.RestErrorKind {
	switch code {
	case "20001":
		return xchg.InsufficientBalance
	case "20008":
		return xchg.DuplicateOrder
	}
	return classifyGeneric(httpStatus, code, message)
}

// RefineCancel refines a failed cancel request: HitBTC error code 20002
// is an unknown order.
func RefineCancel(httpStatus int, code, message string) xchg.RestErrorKind {
	if code == "20002" {
		return xchg.UnknownOrder
	}
	return classifyGeneric(httpStatus, code, message)
}
