package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies the kind of order-lifecycle event recorded in
// the compliance trail. The taxonomy is limited to what this client issues
// on a caller's behalf: it places and cancels orders against a venue, it
// does not manage accounts, positions or funds transfers itself.
type AuditEventType string

const (
	AuditOrderPlacement    AuditEventType = "order_placement"
	AuditOrderCancellation AuditEventType = "order_cancellation"
)

// AuditEvent is a single audit trail entry for one order-placement or
// cancel attempt, win or lose.
type AuditEvent struct {
	EventID     string                 `json:"event_id"`
	Timestamp   time.Time              `json:"timestamp"`
	EventType   AuditEventType         `json:"event_type"`
	Venue       string                 `json:"venue,omitempty"`
	Action      string                 `json:"action"`
	Resource    string                 `json:"resource,omitempty"`
	ResourceID  string                 `json:"resource_id,omitempty"`
	Status      string                 `json:"status"` // success, failed
	Reason      string                 `json:"reason,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Compliance  bool                   `json:"compliance"`
	Environment string                 `json:"environment"`
	RequestID   string                 `json:"request_id,omitempty"`
}

// AuditLogger appends order-lifecycle events to a buffered, periodically
// flushed JSON-lines file, rotating it once it outgrows rotateSize. It is
// attached to a venue's RestClient (see xchg.RestClient.SetAuditLogger) and
// fed one event per order/cancel attempt.
type AuditLogger struct {
	mu          sync.Mutex
	file        *os.File
	encoder     *json.Encoder
	filePath    string
	rotateSize  int64
	currentSize int64
	buffer      []*AuditEvent
	bufferSize  int
	flushTicker *time.Ticker
	stopChan    chan struct{}
	environment string
}

// NewAuditLogger opens (creating if needed) the audit trail file under
// auditDir and starts its background auto-flush goroutine.
func NewAuditLogger(auditDir string) (*AuditLogger, error) {
	if err := os.MkdirAll(auditDir, 0755); err != nil {
		return nil, err
	}

	filePath := filepath.Join(auditDir, "orders-audit.log")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	stat, _ := file.Stat()

	al := &AuditLogger{
		file:        file,
		encoder:     json.NewEncoder(file),
		filePath:    filePath,
		rotateSize:  100 * 1024 * 1024,
		currentSize: stat.Size(),
		buffer:      make([]*AuditEvent, 0, 100),
		bufferSize:  100,
		flushTicker: time.NewTicker(5 * time.Second),
		stopChan:    make(chan struct{}),
		environment: getEnvironment(),
	}

	go al.autoFlush()

	return al, nil
}

// LogOrderPlacement records one order-placement attempt. size and price are
// the venue-reported decimal values (see tick.Tick.Encode), not raw tick
// counts, so the trail reads like the venue's own fill report.
func (al *AuditLogger) LogOrderPlacement(ctx context.Context, orderID, symbol, side string, size, price float64, orderType string, venue string) {
	al.logEvent(ctx, &AuditEvent{
		EventID:    generateEventID(),
		EventType:  AuditOrderPlacement,
		Venue:      venue,
		Action:     "place_order",
		Resource:   "order",
		ResourceID: orderID,
		Status:     "success",
		Metadata: map[string]interface{}{
			"symbol":     symbol,
			"side":       side,
			"size":       size,
			"price":      price,
			"order_type": orderType,
		},
		Compliance: true,
	})
}

// LogOrderCancellation records one cancel attempt. reason is the venue's
// rejection message on failure. Any non-empty reason records the event with
// status "failed", so a reason passed for a successful cancel is recorded
// as a failure; an empty reason records "success".
func (al *AuditLogger) LogOrderCancellation(ctx context.Context, orderID, venue, reason string) {
	status := "success"
	if reason != "" {
		status = "failed"
	}
	al.logEvent(ctx, &AuditEvent{
		EventID:    generateEventID(),
		EventType:  AuditOrderCancellation,
		Venue:      venue,
		Action:     "cancel_order",
		Resource:   "order",
		ResourceID: orderID,
		Status:     status,
		Reason:     reason,
		Compliance: true,
	})
}

func (al *AuditLogger) logEvent(ctx context.Context, event *AuditEvent) {
	event.Timestamp = time.Now().UTC()
	event.Environment = al.environment

	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		event.RequestID = requestID
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	al.buffer = append(al.buffer, event)
	if len(al.buffer) >= al.bufferSize {
		al.flush()
	}
}

func (al *AuditLogger) flush() {
	if len(al.buffer) == 0 {
		return
	}

	for _, event := range al.buffer {
		if err := al.encoder.Encode(event); err == nil {
			al.currentSize += 200
		}
	}

	al.file.Sync()
	al.buffer = al.buffer[:0]

	if al.currentSize >= al.rotateSize {
		al.rotate()
	}
}

func (al *AuditLogger) autoFlush() {
	for {
		select {
		case <-al.flushTicker.C:
			al.mu.Lock()
			al.flush()
			al.mu.Unlock()
		case <-al.stopChan:
			return
		}
	}
}

func (al *AuditLogger) rotate() {
	al.file.Close()

	timestamp := time.Now().Format("20060102-150405")
	rotatedPath := al.filePath + "." + timestamp
	os.Rename(al.filePath, rotatedPath)

	file, err := os.OpenFile(al.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}

	al.file = file
	al.encoder = json.NewEncoder(file)
	al.currentSize = 0
}

// Close flushes any buffered events and closes the underlying file.
func (al *AuditLogger) Close() error {
	close(al.stopChan)
	al.flushTicker.Stop()

	al.mu.Lock()
	defer al.mu.Unlock()

	al.flush()
	return al.file.Close()
}

func generateEventID() string {
	return fmt.Sprintf("audit-%d", time.Now().UnixNano())
}
