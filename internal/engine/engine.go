// Package engine drives the ISA-95 bottling-line state machine: it
// executes the production schedule, manufactures bottles at per-SKU
// rates, arbitrates between normal production, microstops, scheduled
// stops, major and minor breakdowns, changeovers and CIP, and keeps the
// register image and transaction log in sync with what it does.
package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amarach-stackworks/bottlesim/internal/catalog"
	"github.com/amarach-stackworks/bottlesim/internal/config"
	"github.com/amarach-stackworks/bottlesim/internal/events"
	"github.com/amarach-stackworks/bottlesim/internal/logging"
	"github.com/amarach-stackworks/bottlesim/internal/regs"
)

// Engine is the sole writer of the register image and the sole emitter
// of transaction events, per spec.md §5's shared-resource policy.
type Engine struct {
	img    *regs.Image
	events *events.Emitter
	rng    *rand.Rand
	log    *logrus.Entry

	speedFactor float64
	wallTickS   float64
	simTickS    float64

	msMeanIntervalS     float64
	minorBDMeanIntervalS float64
	baseRejectProb      float64
	labelStockInit      float64
	labelStockDep       float64
	capStockInit        float64

	goodCount   uint32
	rejectCount uint32

	lineState      int
	currentOrderID string
	currentSKUID   string
	orderSeq       int

	labelStock  float64
	hazardStock float64
	capStock    float64

	local [regs.TotalRegisters]uint16

	schedule []catalog.Entry
}

// New builds an engine wired to img (already constructed by the caller)
// and emitter, configured from cfg.
func New(cfg *config.Config, img *regs.Image, emitter *events.Emitter) *Engine {
	sf := cfg.Simulator.SpeedFactor
	hz := cfg.Simulator.TickHz

	e := &Engine{
		img:    img,
		events: emitter,
		rng:    newRand(cfg.Production.RandomSeed),
		log:    logging.For("engine"),

		speedFactor: sf,
		wallTickS:   1.0 / hz,
		simTickS:    (1.0 / hz) * sf,

		msMeanIntervalS:      cfg.Production.MicrostopMeanIntervalS,
		minorBDMeanIntervalS: cfg.Production.MinorBreakdownMeanIntervalS,
		baseRejectProb:       cfg.Production.BaseRejectProbability,
		labelStockInit:       cfg.Production.LabelStockInitialPct,
		labelStockDep:        cfg.Production.LabelStockDepletionPer1000,
		capStockInit:         cfg.Production.CapStockInitialPct,

		labelStock:  cfg.Production.LabelStockInitialPct,
		hazardStock: cfg.Production.LabelStockInitialPct,
		capStock:    cfg.Production.CapStockInitialPct,

		schedule: catalog.LoadSchedule(cfg.Simulator.ScheduleXLSX),
	}
	e.initRegisters()
	e.log.Infof("engine ready. speed_factor=%.1fx tick=%.3fs wall / %.3fs sim", sf, e.wallTickS, e.simTickS)
	return e
}

func (e *Engine) initRegisters() {
	e.local[regs.LineState] = uint16(regs.StateIdle)
	e.local[regs.OrderIdx] = regs.IdleIndex
	e.local[regs.SKUIdx] = regs.IdleIndex
	e.local[regs.Labeller1StockPct] = uint16(e.labelStock)
	e.local[regs.Labeller2HazardStockPct] = uint16(e.hazardStock)
	e.local[regs.CapperCapFeedOK] = 1
	e.local[regs.Labeller1SensorOK] = 1
	e.local[regs.ScannerBarcodeOK] = 1
	e.local[regs.FillerScaleStable] = 1
	e.local[regs.SimSpeedX10] = uint16(e.speedFactor * 10)
	e.pushRegisters()
}

func (e *Engine) pushRegisters() {
	e.img.SetRange(0, e.local[:])
}

func (e *Engine) writeFloat(idxHi int, value float32) {
	hi, lo := regs.PackFloat32(value)
	e.local[idxHi] = hi
	e.local[idxHi+1] = lo
}

func (e *Engine) writeUint32(idxHi int, value uint32) {
	hi, lo := regs.PackUint32(value)
	e.local[idxHi] = hi
	e.local[idxHi+1] = lo
}

// setLineState transitions the state machine, emitting StateChanged iff
// the state actually changes.
func (e *Engine) setLineState(state int, stopCode, faultCode string) {
	if e.lineState == state {
		return
	}
	from := e.lineState
	e.lineState = state
	e.local[regs.LineState] = uint16(state)
	e.local[regs.StopCode] = regs.StopCodeFor(stopCode)
	e.local[regs.FaultCode] = regs.FaultCodeMap[faultCode]

	e.events.StateChanged(e.currentOrderID, e.currentSKUID, regs.StateName(from), regs.StateName(state), stopCode, faultCode, nil, nil, nil)
}

// Run executes the full production schedule. It returns when the
// schedule is exhausted or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.log.Infof("simulation starting. %d schedule entries.", len(e.schedule))
	for _, entry := range e.schedule {
		if ctx.Err() != nil {
			break
		}
		e.executeEntry(ctx, entry)
	}
	e.log.Infof("schedule complete. total good=%d reject=%d", e.goodCount, e.rejectCount)
	e.setLineState(regs.StateIdle, "", "")
	e.local[regs.OrderIdx] = regs.IdleIndex
	e.local[regs.SKUIdx] = regs.IdleIndex
	e.pushRegisters()
}

func (e *Engine) executeEntry(ctx context.Context, entry catalog.Entry) {
	switch entry.EntryType {
	case "BREAK":
		e.runBreak(ctx, entry)
	case "CIP":
		e.runCIP(ctx, entry)
	case "ORDER":
		if entry.PrecedingChangeover != "" && entry.ChangeoverCode != "" {
			e.runChangeover(ctx, entry)
		}
		e.runOrder(ctx, entry)
		if entry.CIPAfter {
			e.runCIP(ctx, catalog.Entry{EntryID: "CIP-auto-" + entry.EntryID, EntryType: "CIP", Day: entry.Day, Shift: entry.Shift, CIPDurationMin: 45})
		}
	}
}

func (e *Engine) runChangeover(ctx context.Context, entry catalog.Entry) {
	oid, sku := e.currentOrderID, e.currentSKUID
	code, ctype := entry.ChangeoverCode, entry.ChangeoverType

	e.log.Infof("CHANGEOVER %s (%s) -> %s", code, ctype, entry.SKUID)
	e.events.ChangeoverStarted(oid, sku, ctype, code)
	e.setLineState(regs.StateChangeover, code, "")
	e.local[regs.StopCode] = regs.StopCodeFor(code)

	durS := uniform(e.rng, float64(entry.ChangeoverDurMinLo)*60, float64(entry.ChangeoverDurMinHi)*60)
	e.sleepSim(ctx, durS, true)

	e.events.ChangeoverCompleted(oid, sku, ctype, code, int64(durS*1000))

	if ctype == "LIQUID" {
		e.runCIP(ctx, catalog.Entry{EntryID: "CIP-liq-" + entry.EntryID, EntryType: "CIP", Day: entry.Day, Shift: entry.Shift, CIPDurationMin: 45})
	}

	e.local[regs.StopCode] = 0
}

func (e *Engine) runCIP(ctx context.Context, entry catalog.Entry) {
	oid, sku := e.currentOrderID, e.currentSKUID

	e.log.Infof("CIP starting (%d min sim)", entry.CIPDurationMin)
	e.events.CIPStarted(oid, sku)
	e.setLineState(regs.StateCIP, "", "")

	durS := float64(entry.CIPDurationMin) * 60
	e.sleepSim(ctx, durS, true)

	e.events.CIPEnded(oid, sku, int64(durS*1000))
	e.log.Info("CIP complete")
}

func (e *Engine) runBreak(ctx context.Context, entry catalog.Entry) {
	oid, sku := e.currentOrderID, e.currentSKUID
	const code = "ST04"
	reasonID := 4

	e.log.Infof("BREAK - %d min", entry.BreakDurationMin)
	e.events.StopStarted(oid, sku, code, &reasonID, "Lunch Break")
	e.setLineState(regs.StateStopped, code, "")

	durS := float64(entry.BreakDurationMin) * 60
	e.sleepSim(ctx, durS, true)

	e.events.StopEnded(oid, sku, code, int64(durS*1000), &reasonID)
	e.local[regs.StopCode] = 0
}

// runOrder executes the production loop for one ORDER entry: breakdown
// injection, microstop and minor-breakdown gating, bottle production,
// and signal refresh, once per tick, until planned_qty is reached.
func (e *Engine) runOrder(ctx context.Context, entry catalog.Entry) {
	e.currentOrderID = entry.EntryID
	e.currentSKUID = entry.SKUID
	e.orderSeq++

	sku, ok := catalog.GetSKU(entry.SKUID)
	if !ok {
		e.log.Errorf("unknown sku %s - skipping order %s", entry.SKUID, entry.EntryID)
		return
	}

	orderStartGood := e.goodCount
	orderStartReject := e.rejectCount
	orderElapsed := 0.0
	bottleAcc := 0.0
	orderStartWall := time.Now()

	msTimer := expovariate(e.rng, e.msMeanIntervalS)
	minorBDTimer := expovariate(e.rng, e.minorBDMeanIntervalS)

	var bdInjectAt *float64
	var bdElapsed float64
	var bdCode string
	if entry.InjectBreakdown != "" {
		bdCode = entry.InjectBreakdown
		off := catalog.TriggerOffset(e.rng, entry.PlannedQty, sku.NominalSpeedBPM)
		bdInjectAt = &off
	}

	e.local[regs.SKUIdx] = uint16(catalog.SKUIndex(entry.SKUID))
	e.local[regs.OrderIdx] = uint16(e.orderSeq - 1)
	e.local[regs.OrderSeq] = uint16(e.orderSeq)
	e.writeFloat(regs.FillerTargetWeightHi, float32(sku.TargetWeightG()))
	e.writeFloat(regs.CapperTorqueTargetHi, float32(sku.TorqueTargetNCm))
	e.local[regs.Labeller2HazardRequired] = regs.BoolReg(sku.HazardFlag)

	e.events.OrderStarted(entry.EntryID, entry.SKUID, entry.PlannedQty, time.Now().UTC().Format(time.RFC3339Nano))
	e.setLineState(regs.StateRunning, "", "")

	e.log.Infof("ORDER %s | %s | qty=%d | speed=%.0f bpm", entry.EntryID, entry.SKUID, entry.PlannedQty, sku.NominalSpeedBPM)

	bottlesProduced := 0
	for bottlesProduced < entry.PlannedQty {
		if ctx.Err() != nil {
			return
		}

		if bdInjectAt != nil && bdElapsed >= *bdInjectAt {
			if bd, ok := catalog.GetMajorBreakdown(bdCode); ok {
				e.runMajorBreakdown(ctx, bd)
			}
			bdInjectAt = nil
		}

		if e.lineState == regs.StateRunning {
			msTimer -= e.simTickS
			minorBDTimer -= e.simTickS

			if minorBDTimer <= 0 {
				e.runMinorBreakdown(ctx)
				minorBDTimer = expovariate(e.rng, e.minorBDMeanIntervalS)
			} else if msTimer <= 0 {
				ms := catalog.PickMicrostop(e.rng, entry.SKUID)
				e.runMicrostop(ctx, ms)
				msTimer = expovariate(e.rng, e.msMeanIntervalS)
			}
		}

		if e.lineState == regs.StateRunning {
			bottleAcc += (sku.NominalSpeedBPM / 60.0) * e.simTickS

			for bottleAcc >= 1.0 && bottlesProduced < entry.PlannedQty {
				bottleAcc -= 1.0
				good := e.processBottle(sku, entry.EntryID)
				if good {
					bottlesProduced++
				}
				e.labelStock = maxFloat(0, e.labelStock-e.labelStockDep/1000)
				if sku.HazardFlag {
					e.hazardStock = maxFloat(0, e.hazardStock-e.labelStockDep/1000)
				}
			}

			e.updateLineSignals(sku)

			if bdInjectAt != nil {
				bdElapsed += e.simTickS
			}
		}

		e.pushRegisters()
		e.sleepWallTick(ctx)
		orderElapsed += e.simTickS
	}

	goodDelta := int(e.goodCount - orderStartGood)
	rejectDelta := int(e.rejectCount - orderStartReject)
	plannedQty := entry.PlannedQty
	yield := float64(goodDelta) / float64(maxInt(plannedQty, 1))
	durMs := time.Since(orderStartWall).Milliseconds()

	e.events.OrderCompleted(entry.EntryID, entry.SKUID, goodDelta, rejectDelta, durMs, yield)
	e.log.Infof("ORDER %s COMPLETE | good=%d reject=%d yield=%.1f%%", entry.EntryID, goodDelta, rejectDelta, yield*100)
}

func (e *Engine) updateLineSignals(sku catalog.SKU) {
	speed := noise(e.rng, sku.NominalSpeedBPM, 0.01)
	e.writeFloat(regs.LineSpeedHi, float32(speed))
	e.writeFloat(regs.InfeedRateHi, float32(noise(e.rng, speed, 0.015)))

	e.local[regs.InfeedBottlePresence] = 1
	e.local[regs.InfeedStarved] = 0
	e.local[regs.InfeedJamDetected] = 0

	e.writeFloat(regs.CapperTorqueTargetHi, float32(sku.TorqueTargetNCm))
	e.writeFloat(regs.FillerTargetWeightHi, float32(sku.TargetWeightG()))
}

// runMicrostop sets MICROSTOP, applies the stop's signal mutation,
// sleeps for a sampled duration, restores healthy signals, and returns
// to RUNNING.
func (e *Engine) runMicrostop(ctx context.Context, ms catalog.Microstop) {
	fp := catalog.Fingerprint(e.rng, ms)
	durS := catalog.SampleDuration(e.rng, ms)

	e.events.MicrostopStarted(e.currentOrderID, e.currentSKUID, ms.Code, fp)
	e.setLineState(regs.StateMicrostop, ms.Code, "")
	e.local[regs.StopCode] = regs.StopCodeFor(ms.Code)

	catalog.Mutate(e.rng, ms, e.local[:])

	e.sleepSim(ctx, durS, true)

	e.local[regs.FillerScaleStable] = 1
	e.local[regs.FillerDripSensor] = 0
	e.local[regs.CapperCapFeedOK] = 1
	e.local[regs.CheckweigherRezeroActive] = 0
	e.local[regs.Labeller1SensorOK] = 1
	e.local[regs.ScannerBarcodeOK] = 1
	e.local[regs.InfeedBottlePresence] = 1

	e.events.MicrostopEnded(e.currentOrderID, e.currentSKUID, ms.Code, int64(durS*1000), fp)
	e.setLineState(regs.StateRunning, "", "")
	e.local[regs.StopCode] = 0
}

// runMajorBreakdown sets FAULT, the breakdown's stop and fault codes,
// applies its signal mutation, sleeps, clears, and returns to RUNNING.
func (e *Engine) runMajorBreakdown(ctx context.Context, bd catalog.Breakdown) {
	oid, sku := e.currentOrderID, e.currentSKUID
	durS := catalog.SampleDuration(e.rng, bd)

	e.log.Warnf("BREAKDOWN %s - %s (%s) - %.0f min sim", bd.Code, bd.Name, bd.Station, durS/60)

	e.events.FaultRaised(oid, sku, bd.Code, bd.Severity, bd.Station)
	e.events.StopStarted(oid, sku, bd.Code, nil, "")
	e.setLineState(regs.StateFault, bd.Code, bd.Code)
	e.local[regs.FaultCode] = regs.FaultCodeMap[bd.Code]
	e.local[regs.StopCode] = regs.StopCodeFor(bd.Code)

	switch bd.Code {
	case "BD-M1":
		e.local[regs.FillerScaleStable] = 0
	case "BD-M2":
		e.local[regs.CapperTorqueInSpec] = 0
	case "BD-M3":
		e.local[regs.CheckweigherRezeroActive] = 1
	}

	e.sleepSim(ctx, durS, true)

	e.local[regs.FillerScaleStable] = 1
	e.local[regs.CapperTorqueInSpec] = 1
	e.local[regs.CheckweigherRezeroActive] = 0
	e.local[regs.FaultCode] = 0
	e.local[regs.StopCode] = 0

	e.events.FaultCleared(oid, sku, bd.Code, bd.Severity, bd.Station, int64(durS*1000))
	e.events.StopEnded(oid, sku, bd.Code, int64(durS*1000), nil)
	e.setLineState(regs.StateRunning, "", "")
}

// runMinorBreakdown supplements the distilled spec (SPEC_FULL.md §4 item
// 1): a station-specific nuisance fault drawn independently of the
// order's scheduled major breakdown. It uses the MICROSTOP transition
// rather than FAULT, since fault_code is reserved for majors, but still
// emits FaultRaised/FaultCleared with severity "Minor".
func (e *Engine) runMinorBreakdown(ctx context.Context) {
	oid, sku := e.currentOrderID, e.currentSKUID
	bd := catalog.PickMinorBreakdown(e.rng)
	durS := catalog.SampleDuration(e.rng, bd)

	e.log.Warnf("MINOR BREAKDOWN %s - %s (%s) - %.0f s sim", bd.Code, bd.Name, bd.Station, durS)

	e.events.FaultRaised(oid, sku, bd.Code, bd.Severity, bd.Station)
	e.setLineState(regs.StateMicrostop, bd.Code, "")
	e.local[regs.StopCode] = regs.StopCodeFor(bd.Code)

	switch bd.Code {
	case "BD-MINOR-PE":
		e.local[regs.InfeedBottlePresence] = 0
	case "BD-MINOR-LS":
		e.local[regs.Labeller1SensorOK] = 0
	case "BD-MINOR-CA":
		e.local[regs.CapperCapFeedOK] = 0
	}

	e.sleepSim(ctx, durS, true)

	e.local[regs.InfeedBottlePresence] = 1
	e.local[regs.Labeller1SensorOK] = 1
	e.local[regs.CapperCapFeedOK] = 1

	e.events.FaultCleared(oid, sku, bd.Code, bd.Severity, bd.Station, int64(durS*1000))
	e.setLineState(regs.StateRunning, "", "")
	e.local[regs.StopCode] = 0
}

// sleepSim blocks for simS sim-seconds of scaled wall-clock time,
// pushing the register array on every poll if pollRegs.
func (e *Engine) sleepSim(ctx context.Context, simS float64, pollRegs bool) {
	wallS := simS / e.speedFactor
	deadline := time.Now().Add(time.Duration(wallS * float64(time.Second)))
	tick := time.Duration(e.wallTickS * float64(time.Second))
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		if pollRegs {
			e.pushRegisters()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(tick):
		}
	}
	if pollRegs {
		e.pushRegisters()
	}
}

func (e *Engine) sleepWallTick(ctx context.Context) {
	tick := time.Duration(e.wallTickS * float64(time.Second))
	select {
	case <-ctx.Done():
	case <-time.After(tick):
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
