package engine

import (
	"github.com/amarach-stackworks/bottlesim/internal/catalog"
	"github.com/amarach-stackworks/bottlesim/internal/regs"
)

// processBottle simulates one bottle through every station and reports
// whether it was good. Register writes mirror the live station signals;
// the final reject/good classification also drives goodCount/rejectCount
// and a sampled BottleCompleted event.
func (e *Engine) processBottle(sku catalog.SKU, orderID string) bool {
	var rejectReason string

	// Filler01
	actualWeight := noise(e.rng, sku.TargetWeightG(), 0.005)
	fillTimeMs := int64(noise(e.rng, float64(sku.FillTimeMs()), 0.02))
	weightOK := absF(actualWeight-sku.TargetWeightG()) <= sku.TargetWeightG()*0.02
	e.writeFloat(regs.FillerActualWeightHi, float32(actualWeight))
	e.writeUint32(regs.FillerFillTimeMsHi, uint32(fillTimeMs))
	e.local[regs.FillerScaleStable] = 1
	e.local[regs.FillerDripSensor] = regs.BoolReg(e.rng.Float64() < 0.02)
	e.writeFloat(regs.CheckweigherGrossWeightHi, float32(actualWeight))
	e.local[regs.CheckweigherWeightInSpec] = regs.BoolReg(weightOK)
	if !weightOK {
		rejectReason = "weight"
	}

	// Capper01
	actualTorque := noise(e.rng, sku.TorqueTargetNCm, 0.01)
	torqueOK := absF(actualTorque-sku.TorqueTargetNCm) <= sku.TorqueTargetNCm*0.05
	e.writeFloat(regs.CapperTorqueActualHi, float32(actualTorque))
	e.local[regs.CapperTorqueInSpec] = regs.BoolReg(torqueOK)
	e.local[regs.CapperCapFeedOK] = 1
	if !torqueOK && rejectReason == "" {
		rejectReason = "torque"
	}

	// Scanner01 — 0.5% first-read failure; 10% of those escalate to reject.
	barcodeOK := e.rng.Float64() > 0.005
	e.local[regs.ScannerBarcodeOK] = regs.BoolReg(barcodeOK)
	if barcodeOK {
		e.local[regs.ScannerRescanCount] = 0
	} else {
		e.local[regs.ScannerRescanCount] = uint16(1 + e.rng.Intn(2))
	}
	if !barcodeOK && e.rng.Float64() < 0.1 && rejectReason == "" {
		rejectReason = "barcode"
	}

	// Labeller01
	e.local[regs.Labeller1Applied] = 1
	e.local[regs.Labeller1SensorOK] = 1
	e.local[regs.Labeller1StockPct] = clampPct(e.labelStock)

	// Labeller02 (hazard)
	if sku.HazardFlag {
		hazardOK := e.hazardStock > 2
		e.local[regs.Labeller2HazardRequired] = 1
		e.local[regs.Labeller2HazardApplied] = regs.BoolReg(hazardOK)
		e.local[regs.Labeller2HazardStockPct] = clampPct(e.hazardStock)
		if !hazardOK && rejectReason == "" {
			rejectReason = "hazard_label"
		}
	} else {
		e.local[regs.Labeller2HazardRequired] = 0
		e.local[regs.Labeller2HazardApplied] = 0
	}

	// Base reject noise — an independent quality reject, generic reason.
	if e.rng.Float64() < e.baseRejectProb && rejectReason == "" {
		rejectReason = "weight"
	}

	isGood := rejectReason == ""

	// RejectPusher01
	var cycleMs int64
	if isGood {
		cycleMs = int64(uniform(e.rng, 200, 500))
	} else {
		cycleMs = int64(uniform(e.rng, 500, 800))
	}
	e.writeUint32(regs.PusherCycleMsHi, uint32(cycleMs))
	e.local[regs.PusherRejectTriggered] = regs.BoolReg(!isGood)
	e.local[regs.PusherRejectReason] = regs.RejectReasonMap[rejectReason]

	if isGood {
		e.goodCount++
	} else {
		e.rejectCount++
	}
	e.writeUint32(regs.GoodCountHi, e.goodCount)
	e.writeUint32(regs.RejectCtHi, e.rejectCount)

	if e.rng.Float64() < 0.02 {
		station := "Checkweigher01"
		result := "GOOD"
		if !isGood {
			result = "REJECT"
			station = "RejectPusher01"
		}
		e.events.BottleCompleted(orderID, e.currentSKUID, result, station, rejectReason,
			roundTo2dp(actualWeight), roundTo2dp(actualTorque))
	}

	return isGood
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampPct(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return uint16(v)
}

func roundTo2dp(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
