package catalog

import (
	"math/rand"

	"github.com/amarach-stackworks/bottlesim/internal/regs"
)

// MicrostopKind tags which fingerprint/mutation behavior a Microstop
// dispatches to. Using a tagged variant here (rather than storing closures
// on the struct, as the Python original does with fingerprint_fn/
// mutations_fn) keeps the catalog table a plain, inspectable data
// literal — dispatch happens once, in Fingerprint/Mutate below.
type MicrostopKind int

const (
	KindInfeedMisfeed MicrostopKind = iota
	KindFillStabilisation
	KindNozzleDrip
	KindCapFeedStutter
	KindTorqueRecheck
	KindCheckweigherRezero
	KindLabelPeelback
	KindBarcodeRescan
	KindPusherSlowReturn
	KindOutfeedAccumulation
)

// Microstop is one MS01-MS10 catalog entry: station, duration range,
// selection weight, and which fingerprint/mutation behavior it dispatches
// to at runtime.
type Microstop struct {
	Code         string
	Name         string
	Station      string
	DurationLoS  float64
	DurationHiS  float64
	Weight       float64
	Kind         MicrostopKind
}

// Microstops is the MS01-MS10 table, in catalog order.
var Microstops = []Microstop{
	{"MS01", "Infeed Misfeed", "Infeed01", 6, 25, 12, KindInfeedMisfeed},
	{"MS02", "Fill Stabilisation Wait", "Filler01", 8, 40, 18, KindFillStabilisation},
	{"MS03", "Nozzle Drip Detect", "Filler01", 5, 20, 8, KindNozzleDrip},
	{"MS04", "Cap Feed Stutter", "Capper01", 10, 50, 10, KindCapFeedStutter},
	{"MS05", "Torque Recheck", "Capper01", 12, 60, 9, KindTorqueRecheck},
	{"MS06", "Checkweigher Re-zero", "Checkweigher01", 10, 90, 11, KindCheckweigherRezero},
	{"MS07", "Label Peelback", "Labeller01", 8, 45, 10, KindLabelPeelback},
	{"MS08", "Barcode Re-scan", "Scanner01", 5, 30, 9, KindBarcodeRescan},
	{"MS09", "Reject Pusher Slow Return", "RejectPusher01", 8, 35, 7, KindPusherSlowReturn},
	{"MS10", "Outfeed Accumulation Nudge", "Line01", 15, 120, 6, KindOutfeedAccumulation},
}

var microstopsByCode = func() map[string]Microstop {
	m := make(map[string]Microstop, len(Microstops))
	for _, ms := range Microstops {
		m[ms.Code] = ms
	}
	return m
}()

// GetMicrostop looks up a microstop by code.
func GetMicrostop(code string) (Microstop, bool) {
	ms, ok := microstopsByCode[code]
	return ms, ok
}

// biasedSKUs get extra weight on MS02 — large-volume formats stabilise
// the fill scale more slowly.
var biasedSKUs = map[string]bool{
	"LEM-2L-IE": true, "LEM-6L-IE": true, "COL-2L-IE": true,
}

// PickMicrostop chooses a weighted-random microstop. skuID may be empty;
// when it names a large-volume SKU, MS02's weight is multiplied 1.8x.
func PickMicrostop(rng *rand.Rand, skuID string) Microstop {
	weights := make([]float64, len(Microstops))
	total := 0.0
	for i, ms := range Microstops {
		w := ms.Weight
		if ms.Code == "MS02" && biasedSKUs[skuID] {
			w *= 1.8
		}
		weights[i] = w
		total += w
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return Microstops[i]
		}
	}
	return Microstops[len(Microstops)-1]
}

// SampleDuration returns a uniformly random duration, in sim-seconds,
// within ms's range.
func SampleDuration(rng *rand.Rand, ms Microstop) float64 {
	return ms.DurationLoS + rng.Float64()*(ms.DurationHiS-ms.DurationLoS)
}

// Fingerprint returns the signal fingerprint attached to the
// MicrostopStarted/Ended events, dispatching on ms.Kind.
func Fingerprint(rng *rand.Rand, ms Microstop) map[string]any {
	switch ms.Kind {
	case KindInfeedMisfeed:
		presence := []int{0, 0, 1}[rng.Intn(3)]
		return map[string]any{
			"bottle_presence":      presence,
			"infeed_rate_drop_pct": roundTo(30+rng.Float64()*30, 1),
			"fill_cycle_start":     false,
		}
	case KindFillStabilisation:
		return map[string]any{
			"scale_stable":        false,
			"fill_time_delta_ms": roundTo(150+rng.Float64()*800, 0),
		}
	case KindNozzleDrip:
		return map[string]any{
			"drip_sensor":          true,
			"post_fill_delay_ms":   300 + rng.Intn(501),
		}
	case KindCapFeedStutter:
		return map[string]any{
			"cap_feed_ok":            false,
			"torque_missing_cycles": 1 + rng.Intn(3),
		}
	case KindTorqueRecheck:
		return map[string]any{
			"torque_oor_delta_ncm": roundTo(1.5+rng.Float64()*3, 2),
			"torque_recheck":       true,
		}
	case KindCheckweigherRezero:
		return map[string]any{
			"rezero_active":  true,
			"weight_drift_g": roundTo(0.5+rng.Float64()*2, 2),
		}
	case KindLabelPeelback:
		return map[string]any{
			"label_sensor_ok":       false,
			"label_peelback_count": 1 + rng.Intn(3),
		}
	case KindBarcodeRescan:
		return map[string]any{
			"barcode_read_ok": false,
			"rescan_count":    1 + rng.Intn(3),
		}
	case KindPusherSlowReturn:
		return map[string]any{
			"pusher_cycle_time_ms": 900 + rng.Intn(1101),
			"threshold_ms":         800,
		}
	case KindOutfeedAccumulation:
		return map[string]any{
			"outfeed_near_full": true,
			"speed_dip_bpm":     roundTo(5+rng.Float64()*15, 1),
		}
	default:
		return nil
	}
}

// Mutate applies the microstop's register perturbations directly to
// regsArr, the caller's working register array (not the shared, published image —
// the caller is responsible for pushing regs out while the stop is
// active, the same way every other stop handler works).
func Mutate(rng *rand.Rand, ms Microstop, regsArr []uint16) {
	switch ms.Kind {
	case KindInfeedMisfeed:
		presence := []int{0, 0, 0, 1}[rng.Intn(4)]
		regsArr[regs.InfeedBottlePresence] = uint16(presence)
		regsArr[regs.InfeedStarved] = 0
	case KindFillStabilisation:
		regsArr[regs.FillerScaleStable] = 0
	case KindNozzleDrip:
		regsArr[regs.FillerDripSensor] = 1
	case KindCapFeedStutter:
		regsArr[regs.CapperCapFeedOK] = 0
	case KindCheckweigherRezero:
		regsArr[regs.CheckweigherRezeroActive] = 1
	case KindLabelPeelback:
		regsArr[regs.Labeller1SensorOK] = 0
	case KindBarcodeRescan:
		regsArr[regs.ScannerBarcodeOK] = 0
		regsArr[regs.ScannerRescanCount] = uint16(1 + rng.Intn(3))
	case KindTorqueRecheck, KindPusherSlowReturn, KindOutfeedAccumulation:
		// No register mutation: these stops are reported through their
		// stop_code and fingerprint only.
	}
}

func roundTo(v float64, places int) float64 {
	scale := 1.0
	for i := 0; i < places; i++ {
		scale *= 10
	}
	return float64(int64(v*scale+0.5)) / scale
}
