package xchg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epic1st/xchg/logging"
	"github.com/epic1st/xchg/metrics"
)

// Signer authenticates an outgoing request in a venue-specific way:
// Binance appends a `timestamp` query param and an HMAC-SHA256 hex
// signature to the query string; GDAX signs `timestamp||method||path||body`
// and sets four `CB-ACCESS-*` headers; HitBTC sets a precomputed HTTP
// Basic `Authorization` header. Sign mutates req in place.
type Signer interface {
	Sign(req *RestRequest)
}

// RestRequest is the venue-agnostic shape of one outbound REST call,
// built by the venue adapter and signed (if Authenticated) before issuing.
type RestRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Body          []byte
	Headers       http.Header
	Authenticated bool

	// Audit, when set, describes an order-lifecycle request for the
	// optional compliance audit trail (RestClient.SetAuditLogger). Left
	// nil for non-order requests (symbol/balance/ping lookups).
	Audit *AuditMeta
}

// AuditMeta carries the order-lifecycle details a venue's Order/Cancel
// call attaches to its RestRequest so the REST framework can record one
// compliance audit event per attempt, win or lose, without every venue
// adapter reimplementing audit logging itself.
type AuditMeta struct {
	// Action is "place_order" or "cancel_order".
	Action    string
	OrderID   string
	Symbol    string
	Side      string
	Size      float64
	Price     float64
	OrderType string
	Reason    string
}

// ErrorDecoder turns a non-200 response body into the venue's own error
// code/message pair, best-effort (a body that fails to parse yields empty
// strings, never an error of its own -- the HTTP status still drives
// classification).
type ErrorDecoder func(body []byte) (code, message string)

// Refiner further classifies a failed request beyond the generic
// categories, for a specific request kind (order placement, cancel). It
// receives the same decoded venue code/message the generic classify
// function passed to NewRestClient does.
type Refiner func(httpStatus int, code, message string) RestErrorKind

// RestClient is the one-operation REST framework every venue adapter
// builds on: `request(endpoint, method, body-or-query) -> bytes | ApiError`.
// Concurrency-safe; shared across every REST call a venue client issues.
type RestClient struct {
	baseURL string
	http    *http.Client
	signer  Signer
	decode  ErrorDecoder
	classify func(httpStatus int, code, message string) GenericRestKind
	venue   string
	logger  *logging.Logger

	mu    sync.RWMutex
	audit *logging.AuditLogger
}

// SetAuditLogger attaches a compliance audit trail: every subsequent
// RestRequest carrying an AuditMeta records one LogOrderPlacement or
// LogOrderCancellation event, success or failure. Passing nil disables
// it again. Safe for concurrent use with in-flight requests.
func (c *RestClient) SetAuditLogger(al *logging.AuditLogger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audit = al
}

// NewRestClient builds a REST framework instance bound to one venue's
// endpoint, signer, and error classification.
func NewRestClient(
	venue, baseURL string,
	signer Signer,
	decode ErrorDecoder,
	classify func(httpStatus int, code, message string) GenericRestKind,
	logger *logging.Logger,
) *RestClient {
	return &RestClient{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		signer:   signer,
		decode:   decode,
		classify: classify,
		venue:    venue,
		logger:   logger,
	}
}

// Do issues req and returns the raw 200 response body, or a *RestError /
// *RequestError on failure. refine, if non-nil, is consulted before the
// generic classifier to produce a request-specific RestErrorKind (order
// placement and cancel each pass their own).
func (c *RestClient) Do(ctx context.Context, req RestRequest, refine Refiner) ([]byte, error) {
	requestID := uuid.New().String()
	ctx = logging.ContextWithRequestID(ctx, requestID)

	if req.Authenticated {
		c.signer.Sign(&req)
	}

	u := c.baseURL + "/" + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, bodyReader)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	metrics.ObserveRestLatency(c.venue, req.Path, elapsed.Seconds())
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	logging.LogSlowEndpoint(req.Method, c.venue+"/"+req.Path, elapsed, resp.StatusCode, requestID)

	if resp.StatusCode == http.StatusOK {
		c.recordAudit(ctx, req.Audit, "")
		return body, nil
	}

	code, message := c.decode(body)
	c.logger.Warn("rest request failed",
		logging.Component("xchg"),
		logging.RequestID(requestID),
		logging.Venue(c.venue),
		logging.Int("http_status", resp.StatusCode),
		logging.String("venue_code", code),
		logging.String("venue_message", message))

	var kind RestErrorKind
	if refine != nil {
		kind = refine(resp.StatusCode, code, message)
	} else {
		kind = c.classify(resp.StatusCode, code, message)
	}

	c.recordAudit(ctx, req.Audit, message)

	restErr := &RestError{
		Kind:         kind,
		HTTPStatus:   resp.StatusCode,
		VenueCode:    code,
		VenueMessage: message,
	}
	logging.TrackError(ctx, restErr, errorSeverity(kind), map[string]interface{}{
		"venue": c.venue,
		"path":  req.Path,
	})
	return nil, restErr
}

// errorSeverity maps a classified REST failure to an alerting severity:
// desynchronization-adjacent and liquidity failures page loudest, a
// rate limit is expected operating noise.
func errorSeverity(kind RestErrorKind) string {
	switch kind {
	case TooManyRequests:
		return "low"
	case OutsideTimeWindow, InvalidRequest:
		return "medium"
	case OtherSide, UnknownStatus:
		return "high"
	default:
		return "high"
	}
}

// recordAudit logs one compliance audit event for meta, if an audit
// logger is attached and the request carried an AuditMeta at all.
// failReason is empty on success.
func (c *RestClient) recordAudit(ctx context.Context, meta *AuditMeta, failReason string) {
	if meta == nil {
		return
	}
	c.mu.RLock()
	audit := c.audit
	c.mu.RUnlock()
	if audit == nil {
		return
	}

	switch meta.Action {
	case "place_order":
		audit.LogOrderPlacement(ctx, meta.OrderID, meta.Symbol, meta.Side, meta.Size, meta.Price, meta.OrderType, c.venue)
	case "cancel_order":
		reason := meta.Reason
		if failReason != "" {
			reason = failReason
		}
		audit.LogOrderCancellation(ctx, meta.OrderID, c.venue, reason)
	}
}
