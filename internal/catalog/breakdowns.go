package catalog

import "math/rand"

// Breakdown is a major or minor fault definition: station, severity,
// duration range, the stop_code it reports, and a free-text description.
// The description is reference data only: it is not logged, emitted in
// events, or written to the register image.
type Breakdown struct {
	Code             string
	Name             string
	Station          string
	Severity         string // Major | Minor
	DurationLoS      float64
	DurationHiS      float64
	StopCode         string
	FaultDescription string
}

// MajorBreakdowns are BD-M1 through BD-M3: each sets fault_code and holds
// the line in FAULT until cleared.
var MajorBreakdowns = map[string]Breakdown{
	"BD-M1": {
		Code: "BD-M1", Name: "Filler Scale Failure", Station: "Filler01", Severity: "Major",
		DurationLoS: 45 * 60, DurationHiS: 75 * 60, StopCode: "BD-M1",
		FaultDescription: "Load cell on Filler01 scale unresponsive. Scale_stable permanently false. actual_weight_g unreliable.",
	},
	"BD-M2": {
		Code: "BD-M2", Name: "Capper Torque Sensor Failure", Station: "Capper01", Severity: "Major",
		DurationLoS: 45 * 60, DurationHiS: 75 * 60, StopCode: "BD-M2",
		FaultDescription: "Torque sensor on Capper01 returning null/zero. torque_in_spec=false continuously. All caps unverified.",
	},
	"BD-M3": {
		Code: "BD-M3", Name: "Checkweigher Loadcell Failure", Station: "Checkweigher01", Severity: "Major",
		DurationLoS: 45 * 60, DurationHiS: 75 * 60, StopCode: "BD-M3",
		FaultDescription: "Checkweigher01 load cell drift. gross_weight_g stuck or erratic. rezero_active=true continuously.",
	},
}

// MinorBreakdowns supplements the distilled spec with the minor-fault
// catalog the original simulator defines but never schedules (see
// SPEC_FULL.md §4 item 1) — wired in here via the new
// minor_breakdown_mean_interval_s production config.
var MinorBreakdowns = []Breakdown{
	{Code: "BD-MINOR-PE", Name: "Photoeye Misalignment", Station: "Infeed01", Severity: "Minor",
		DurationLoS: 5 * 60, DurationHiS: 20 * 60, StopCode: "BD-MINOR-PE",
		FaultDescription: "Photoeye on Infeed01 misaligned. bottle_presence unreliable."},
	{Code: "BD-MINOR-LS", Name: "Label Sensor Cleaning", Station: "Labeller01", Severity: "Minor",
		DurationLoS: 5 * 60, DurationHiS: 20 * 60, StopCode: "BD-MINOR-LS",
		FaultDescription: "Label sensor on Labeller01 contaminated. label_sensor_ok flickering."},
	{Code: "BD-MINOR-CA", Name: "Cap Chute Adjustment", Station: "Capper01", Severity: "Minor",
		DurationLoS: 5 * 60, DurationHiS: 20 * 60, StopCode: "BD-MINOR-CA",
		FaultDescription: "Cap chute on Capper01 jammed. cap_feed_ok=false."},
}

// GetMajorBreakdown looks up a major breakdown by code.
func GetMajorBreakdown(code string) (Breakdown, bool) {
	bd, ok := MajorBreakdowns[code]
	return bd, ok
}

// PickMinorBreakdown chooses one of the three minor breakdowns uniformly.
func PickMinorBreakdown(rng *rand.Rand) Breakdown {
	return MinorBreakdowns[rng.Intn(len(MinorBreakdowns))]
}

// SampleDuration returns a uniformly random duration, in sim-seconds,
// within bd's range.
func SampleDuration(rng *rand.Rand, bd Breakdown) float64 {
	return bd.DurationLoS + rng.Float64()*(bd.DurationHiS-bd.DurationLoS)
}

// TriggerOffset returns the sim-seconds into an order at which to inject a
// major breakdown: roughly 20-40% into its planned duration.
func TriggerOffset(rng *rand.Rand, plannedQty int, speedBPM float64) float64 {
	orderDurationS := (float64(plannedQty) / speedBPM) * 60
	frac := 0.20 + rng.Float64()*0.20
	return orderDurationS * frac
}
