package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/amarach-stackworks/bottlesim/internal/catalog"
	"github.com/amarach-stackworks/bottlesim/internal/config"
	"github.com/amarach-stackworks/bottlesim/internal/events"
	"github.com/amarach-stackworks/bottlesim/internal/regs"
)

func newTestEngine(t *testing.T) (*Engine, *regs.Image) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Simulator.SpeedFactor = 5000 // fast wall-clock for tests
	cfg.Simulator.TickHz = 50
	cfg.Production.RandomSeed = 42
	cfg.Logging.TransactionsFile = filepath.Join(t.TempDir(), "transactions.jsonl")
	cfg.Logging.Console = false

	emitter, err := events.New(events.Config{
		Enterprise: cfg.Enterprise.Name, Site: cfg.Enterprise.Site,
		Area: cfg.Enterprise.Area, Line: cfg.Enterprise.Line,
		InstanceID: cfg.Simulator.InstanceID, TxnFile: cfg.Logging.TransactionsFile,
	})
	if err != nil {
		t.Fatalf("events.New() error = %v", err)
	}
	t.Cleanup(func() { emitter.Close() })

	img := regs.NewImage()
	e := New(&cfg, img, emitter)
	return e, img
}

func TestInitRegistersSetsIdleSentinelsAndState(t *testing.T) {
	_, img := newTestEngine(t)
	if got := img.Get(regs.LineState); got != uint16(regs.StateIdle) {
		t.Errorf("LineState = %d, want %d (IDLE)", got, regs.StateIdle)
	}
	if got := img.Get(regs.OrderIdx); got != regs.IdleIndex {
		t.Errorf("OrderIdx = %#x, want %#x", got, regs.IdleIndex)
	}
	if got := img.Get(regs.SKUIdx); got != regs.IdleIndex {
		t.Errorf("SKUIdx = %#x, want %#x", got, regs.IdleIndex)
	}
}

func TestProcessBottleIncrementsExactlyOneCounter(t *testing.T) {
	e, _ := newTestEngine(t)
	sku, _ := catalog.GetSKU("LEM-200-IE")
	e.currentSKUID = "LEM-200-IE"

	for i := 0; i < 500; i++ {
		goodBefore, rejectBefore := e.goodCount, e.rejectCount
		good := e.processBottle(sku, "ORD-TEST")
		totalDelta := (e.goodCount - goodBefore) + (e.rejectCount - rejectBefore)
		if totalDelta != 1 {
			t.Fatalf("iteration %d: exactly one counter should increment, got goodDelta=%d rejectDelta=%d",
				i, e.goodCount-goodBefore, e.rejectCount-rejectBefore)
		}
		if good && e.goodCount != goodBefore+1 {
			t.Fatalf("iteration %d: good=true but goodCount didn't increment", i)
		}
	}
}

func TestProcessBottleMostlyGoodForInSpecSKU(t *testing.T) {
	e, _ := newTestEngine(t)
	sku, _ := catalog.GetSKU("LEM-500-IE")
	e.currentSKUID = "LEM-500-IE"

	const n = 2000
	good := 0
	for i := 0; i < n; i++ {
		if e.processBottle(sku, "ORD-TEST") {
			good++
		}
	}
	if float64(good)/float64(n) < 0.9 {
		t.Errorf("good rate = %.3f, want >= 0.90 for an in-spec SKU with low base reject probability", float64(good)/float64(n))
	}
}

func TestSetLineStateNoopWhenUnchanged(t *testing.T) {
	e, img := newTestEngine(t)
	e.setLineState(regs.StateRunning, "", "")
	before := img.Get(regs.StopCode)
	e.local[regs.StopCode] = 99 // simulate a stale local write
	e.setLineState(regs.StateRunning, "", "")
	if e.local[regs.StopCode] != 99 {
		t.Error("setLineState with the same state should be a no-op and not touch stop_code")
	}
	_ = before
}

func TestRunningStateImpliesZeroStopAndFaultCode(t *testing.T) {
	e, _ := newTestEngine(t)
	e.setLineState(regs.StateFault, "BD-M1", "BD-M1")
	e.setLineState(regs.StateRunning, "", "")
	if e.local[regs.StopCode] != 0 {
		t.Errorf("StopCode = %d after returning to RUNNING, want 0", e.local[regs.StopCode])
	}
	if e.local[regs.FaultCode] != 0 {
		t.Errorf("FaultCode = %d after returning to RUNNING, want 0", e.local[regs.FaultCode])
	}
}

func TestFaultCodeNonzeroOnlyDuringFault(t *testing.T) {
	e, _ := newTestEngine(t)
	e.setLineState(regs.StateFault, "BD-M2", "BD-M2")
	if e.local[regs.FaultCode] == 0 {
		t.Error("FaultCode should be nonzero while in FAULT")
	}
	if e.lineState != regs.StateFault {
		t.Errorf("lineState = %d, want StateFault", e.lineState)
	}
}

func TestRunShortScheduleReachesIdleAndProducesBottles(t *testing.T) {
	e, img := newTestEngine(t)
	e.schedule = []catalog.Entry{
		{EntryID: "ORD-T1", EntryType: "ORDER", SKUID: "LEM-200-IE", PlannedQty: 20},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.Run(ctx)

	if got := img.Get(regs.LineState); got != uint16(regs.StateIdle) {
		t.Errorf("LineState after Run() = %d, want IDLE", got)
	}
	if got := img.Get(regs.OrderIdx); got != regs.IdleIndex {
		t.Errorf("OrderIdx after Run() = %#x, want idle sentinel", got)
	}
	if e.goodCount != 20 {
		t.Errorf("goodCount = %d, want 20 (planned_qty counts only good bottles)", e.goodCount)
	}
}

func TestRunSkipsOrderWithUnknownSKU(t *testing.T) {
	e, _ := newTestEngine(t)
	e.schedule = []catalog.Entry{
		{EntryID: "ORD-BAD", EntryType: "ORDER", SKUID: "NOT-A-SKU", PlannedQty: 20},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e.Run(ctx)

	if e.goodCount+e.rejectCount != 0 {
		t.Errorf("goodCount+rejectCount = %d, want 0 for an order with no resolvable SKU", e.goodCount+e.rejectCount)
	}
}

// TestRunMicrostopMutationVisibleOnPublishedImage guards against a
// regression where the microstop's register mutation was applied to the
// shared image directly instead of the engine's local working array, so
// the very next register push (built from the untouched local array)
// immediately erased it. A poller would then never observe the fault
// signal while the stop was active.
func TestRunMicrostopMutationVisibleOnPublishedImage(t *testing.T) {
	e, img := newTestEngine(t)
	e.speedFactor = 1
	e.wallTickS = 0.001
	e.local[regs.FillerScaleStable] = 1

	ms := catalog.Microstop{
		Code: "MS02", Station: "Filler01",
		DurationLoS: 0.05, DurationHiS: 0.05,
		Kind: catalog.KindFillStabilisation,
	}

	done := make(chan struct{})
	go func() {
		e.runMicrostop(context.Background(), ms)
		close(done)
	}()

	found := false
	timeout := time.After(2 * time.Second)
poll:
	for {
		select {
		case <-done:
			break poll
		case <-timeout:
			break poll
		default:
			if img.Get(regs.FillerScaleStable) == 0 {
				found = true
				break poll
			}
			time.Sleep(time.Millisecond)
		}
	}
	<-done

	if !found {
		t.Fatal("FillerScaleStable was never observed as 0 on the published image while the microstop was active")
	}
}
