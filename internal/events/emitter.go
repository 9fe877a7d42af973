// Package events builds governed transaction-event envelopes and appends
// them as one JSON object per line to the transaction log, per
// spec.md §3/§4.4.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/amarach-stackworks/bottlesim/internal/logging"
)

// dedupCap and dedupTrimTo bound the idempotency ring: once the ring holds
// dedupCap ids, it is trimmed back to the most recently inserted
// dedupTrimTo, in true insertion order (spec.md §9 Open Question 2 — an
// explicit ordered ring replaces the original's unordered-set trim, whose
// "most recent" claim an unordered container cannot actually honor).
const (
	dedupCap    = 10000
	dedupTrimTo = 5000
)

// dedupRing is a bounded, ordered set of recently-seen event ids.
type dedupRing struct {
	order []string
	seen  map[string]struct{}
}

func newDedupRing() *dedupRing {
	return &dedupRing{seen: make(map[string]struct{}, dedupCap)}
}

// seenOrAdd reports whether id was already present; if not, it is recorded.
func (d *dedupRing) seenOrAdd(id string) bool {
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	if len(d.order) > dedupCap {
		drop := d.order[:len(d.order)-dedupTrimTo]
		for _, old := range drop {
			delete(d.seen, old)
		}
		d.order = append([]string(nil), d.order[len(d.order)-dedupTrimTo:]...)
	}
	return false
}

// Emitter writes governed events to a JSONL transaction log. It is owned
// exclusively by the line engine — spec.md §5 forbids any other writer.
type Emitter struct {
	enterprise string
	site       string
	area       string
	line       string
	actorID    string
	txnFile    string
	console    bool

	file  *os.File
	dedup *dedupRing
}

// Config bundles the fields Emitter needs from the simulator configuration.
type Config struct {
	Enterprise string
	Site       string
	Area       string
	Line       string
	InstanceID string
	TxnFile    string
	Console    bool
}

// New creates the transaction-log directory (if missing) and opens the
// file for append.
func New(cfg Config) (*Emitter, error) {
	dir := filepath.Dir(cfg.TxnFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("events: creating %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(cfg.TxnFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("events: opening %s: %w", cfg.TxnFile, err)
	}
	return &Emitter{
		enterprise: cfg.Enterprise,
		site:       cfg.Site,
		area:       cfg.Area,
		line:       cfg.Line,
		actorID:    cfg.InstanceID,
		txnFile:    cfg.TxnFile,
		console:    cfg.Console,
		file:       f,
		dedup:      newDedupRing(),
	}, nil
}

// Close closes the underlying transaction-log file.
func (e *Emitter) Close() error {
	return e.file.Close()
}

func (e *Emitter) base(eventType, orderID, sku string) Envelope {
	return Envelope{
		EventType:  eventType,
		EventID:    uuid.NewString(),
		Ts:         time.Now().UTC().Format(time.RFC3339Nano),
		Enterprise: e.enterprise,
		Site:       e.site,
		Area:       e.area,
		Line:       e.line,
		OrderID:    orderID,
		SKU:        sku,
		Actor:      Actor{Type: "sim", ID: e.actorID},
		Validation: Validation{Status: "ACCEPTED", Version: "v1"},
	}
}

// emit appends evt (already fully populated) to the log, unless its
// eventId has already been observed.
func (e *Emitter) emit(eventID string, evt any) {
	if e.dedup.seenOrAdd(eventID) {
		logging.For("events").Warnf("duplicate event suppressed: %s", eventID)
		return
	}
	line, err := json.Marshal(evt)
	if err != nil {
		logging.For("events").Errorf("marshal event: %v", err)
		return
	}
	if _, err := e.file.Write(append(line, '\n')); err != nil {
		logging.For("events").Errorf("write transaction log: %v", err)
		return
	}
	if e.console {
		logging.For("events").Infof("[EVENT] %s", eventID)
	}
}

// StateChanged emits a StateChanged event.
func (e *Emitter) StateChanged(orderID, sku, from, to, stopCode, faultCode string, reasonID *int, durationMs *int64, fingerprint map[string]any) {
	evt := StateChanged{
		Envelope:    e.base("StateChanged", orderID, sku),
		FromState:   from,
		ToState:     to,
		StopCode:    stopCode,
		FaultCode:   faultCode,
		ReasonID:    reasonID,
		DurationMs:  durationMs,
		Fingerprint: fingerprint,
	}
	e.emit(evt.EventID, evt)
}

// OrderStarted emits an OrderStarted event.
func (e *Emitter) OrderStarted(orderID, sku string, plannedQty int, plannedStartTs string) {
	evt := OrderStarted{
		Envelope:       e.base("OrderStarted", orderID, sku),
		PlannedQty:     plannedQty,
		PlannedStartTs: plannedStartTs,
	}
	e.emit(evt.EventID, evt)
}

// OrderCompleted emits an OrderCompleted event.
func (e *Emitter) OrderCompleted(orderID, sku string, goodDelta, rejectDelta int, durationMs int64, yield float64) {
	evt := OrderCompleted{
		Envelope:         e.base("OrderCompleted", orderID, sku),
		GoodCountDelta:   goodDelta,
		RejectCountDelta: rejectDelta,
		DurationMs:       durationMs,
		Yield:            roundTo4dp(yield),
	}
	e.emit(evt.EventID, evt)
}

func roundTo4dp(v float64) float64 {
	const scale = 10000.0
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}

// BottleCompleted emits a sampled BottleCompleted event.
func (e *Emitter) BottleCompleted(orderID, sku, result, station, rejectReason string, weight, torque float64) {
	evt := BottleCompleted{
		Envelope:     e.base("BottleCompleted", orderID, sku),
		Result:       result,
		Station:      station,
		RejectReason: rejectReason,
		Weight:       weight,
		Torque:       torque,
	}
	e.emit(evt.EventID, evt)
}

// MicrostopStarted emits a MicrostopStarted event.
func (e *Emitter) MicrostopStarted(orderID, sku, stopCode string, fingerprint map[string]any) {
	evt := MicrostopStarted{
		Envelope:    e.base("MicrostopStarted", orderID, sku),
		StopCode:    stopCode,
		Fingerprint: fingerprint,
	}
	e.emit(evt.EventID, evt)
}

// MicrostopEnded emits a MicrostopEnded event.
func (e *Emitter) MicrostopEnded(orderID, sku, stopCode string, durationMs int64, fingerprint map[string]any) {
	evt := MicrostopEnded{
		Envelope:    e.base("MicrostopEnded", orderID, sku),
		StopCode:    stopCode,
		DurationMs:  durationMs,
		Fingerprint: fingerprint,
	}
	e.emit(evt.EventID, evt)
}

// StopStarted emits a StopStarted event (breaks, major breakdowns).
func (e *Emitter) StopStarted(orderID, sku, stopCode string, reasonID *int, reasonText string) {
	evt := StopStarted{
		Envelope:   e.base("StopStarted", orderID, sku),
		StopCode:   stopCode,
		ReasonID:   reasonID,
		ReasonText: reasonText,
	}
	e.emit(evt.EventID, evt)
}

// StopEnded emits a StopEnded event.
func (e *Emitter) StopEnded(orderID, sku, stopCode string, durationMs int64, reasonID *int) {
	evt := StopEnded{
		Envelope:   e.base("StopEnded", orderID, sku),
		StopCode:   stopCode,
		DurationMs: durationMs,
		ReasonID:   reasonID,
	}
	e.emit(evt.EventID, evt)
}

// FaultRaised emits a FaultRaised event.
func (e *Emitter) FaultRaised(orderID, sku, faultCode, severity, station string) {
	evt := FaultRaised{
		Envelope:  e.base("FaultRaised", orderID, sku),
		FaultCode: faultCode,
		Severity:  severity,
		Station:   station,
	}
	e.emit(evt.EventID, evt)
}

// FaultCleared emits a FaultCleared event.
func (e *Emitter) FaultCleared(orderID, sku, faultCode, severity, station string, durationMs int64) {
	evt := FaultCleared{
		Envelope:   e.base("FaultCleared", orderID, sku),
		FaultCode:  faultCode,
		Severity:   severity,
		Station:    station,
		DurationMs: durationMs,
	}
	e.emit(evt.EventID, evt)
}

// CIPStarted emits a CIPStarted event.
func (e *Emitter) CIPStarted(orderID, sku string) {
	evt := CIPStarted{Envelope: e.base("CIPStarted", orderID, sku)}
	e.emit(evt.EventID, evt)
}

// CIPEnded emits a CIPEnded event.
func (e *Emitter) CIPEnded(orderID, sku string, durationMs int64) {
	evt := CIPEnded{
		Envelope:   e.base("CIPEnded", orderID, sku),
		DurationMs: durationMs,
	}
	e.emit(evt.EventID, evt)
}

// ChangeoverStarted emits a ChangeoverStarted event.
func (e *Emitter) ChangeoverStarted(orderID, sku, changeoverType, stopCode string) {
	evt := ChangeoverStarted{
		Envelope:       e.base("ChangeoverStarted", orderID, sku),
		ChangeoverType: changeoverType,
		StopCode:       stopCode,
	}
	e.emit(evt.EventID, evt)
}

// ChangeoverCompleted emits a ChangeoverCompleted event.
func (e *Emitter) ChangeoverCompleted(orderID, sku, changeoverType, stopCode string, durationMs int64) {
	evt := ChangeoverCompleted{
		Envelope:       e.base("ChangeoverCompleted", orderID, sku),
		ChangeoverType: changeoverType,
		StopCode:       stopCode,
		DurationMs:     durationMs,
	}
	e.emit(evt.EventID, evt)
}
