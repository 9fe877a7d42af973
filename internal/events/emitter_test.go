package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestEmitter(t *testing.T) (*Emitter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "transactions.jsonl")
	e, err := New(Config{
		Enterprise: "Aerogen", Site: "Shannon", Area: "Bottling", Line: "Line01",
		InstanceID: "sim01", TxnFile: path,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestCIPStartedWritesEnvelope(t *testing.T) {
	e, path := newTestEmitter(t)
	e.CIPStarted("", "")

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["eventType"] != "CIPStarted" {
		t.Errorf("eventType = %v, want CIPStarted", got["eventType"])
	}
	if got["enterprise"] != "Aerogen" {
		t.Errorf("enterprise = %v, want Aerogen", got["enterprise"])
	}
	if got["eventId"] == nil || got["eventId"] == "" {
		t.Error("eventId is empty")
	}
}

func TestDuplicateEventIDSuppressed(t *testing.T) {
	e, path := newTestEmitter(t)
	evt := CIPStarted{Envelope: e.base("CIPStarted", "", "")}
	e.emit(evt.EventID, evt)
	e.emit(evt.EventID, evt)

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 after duplicate emit", len(lines))
	}
}

func TestDedupRingTrimsAndForgetsOldest(t *testing.T) {
	d := newDedupRing()
	for i := 0; i < dedupCap; i++ {
		if d.seenOrAdd(string(rune(i))) {
			t.Fatalf("unexpected duplicate at fresh index %d", i)
		}
	}
	if len(d.order) != dedupCap {
		t.Fatalf("order len = %d, want %d", len(d.order), dedupCap)
	}

	// One more insertion trims the ring down to dedupTrimTo, forgetting the
	// oldest entries.
	if d.seenOrAdd("overflow") {
		t.Fatal("overflow id reported as already seen")
	}
	if len(d.order) != dedupTrimTo {
		t.Fatalf("order len after trim = %d, want %d", len(d.order), dedupTrimTo)
	}

	// The oldest id (index 0) must have been forgotten.
	if d.seenOrAdd(string(rune(0))) {
		t.Error("forgotten id reported as already seen")
	}
}

func TestOrderCompletedRoundsYield(t *testing.T) {
	e, path := newTestEmitter(t)
	e.OrderCompleted("ORD-001", "LEM-200-IE", 995, 5, 1234, 0.995049999)

	lines := readLines(t, path)
	var got OrderCompleted
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Yield != 0.995 {
		t.Errorf("Yield = %v, want 0.995", got.Yield)
	}
	if got.OrderID != "ORD-001" || got.SKU != "LEM-200-IE" {
		t.Errorf("OrderID/SKU = %q/%q, want ORD-001/LEM-200-IE", got.OrderID, got.SKU)
	}
}

func TestMicrostopStartedCarriesFingerprint(t *testing.T) {
	e, path := newTestEmitter(t)
	e.MicrostopStarted("ORD-001", "LEM-200-IE", "MS02", map[string]any{"station": "FIL01"})

	lines := readLines(t, path)
	var got MicrostopStarted
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.StopCode != "MS02" {
		t.Errorf("StopCode = %q, want MS02", got.StopCode)
	}
	if got.Fingerprint["station"] != "FIL01" {
		t.Errorf("Fingerprint[station] = %v, want FIL01", got.Fingerprint["station"])
	}
}
