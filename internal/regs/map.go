package regs

// TotalRegisters is the fixed size of the holding-register image. Unused
// indices read as 0.
const TotalRegisters = 100

// Holding-register indices. Documentation addresses are Index+40001.
// Widths and encodings mirror the wire contract in spec.md §6.
const (
	LineState   = 0  // u16
	LineSpeedHi = 1  // f32 (1-2), bpm
	GoodCountHi = 3  // u32 (3-4)
	RejectCtHi  = 5  // u32 (5-6)
	OrderIdx    = 7  // u16, 0xFFFF = idle
	SKUIdx      = 8  // u16, 0xFFFF = idle
	StopCode    = 9  // u16
	FaultCode   = 10 // u16, 0/1/2/3
	OrderSeq    = 11 // u16, 1-based
	SimSpeedX10 = 12 // u16

	InfeedBottlePresence = 14 // bool
	InfeedRateHi         = 15 // f32 (15-16)
	InfeedStarved        = 17 // bool
	InfeedJamDetected    = 18 // bool

	FillerTargetWeightHi = 20 // f32 (20-21), g
	FillerActualWeightHi = 22 // f32 (22-23), g
	FillerFillTimeMsHi   = 24 // u32 (24-25), ms
	FillerScaleStable    = 26 // bool
	FillerDripSensor     = 27 // bool

	CapperTorqueTargetHi = 29 // f32 (29-30), Ncm
	CapperTorqueActualHi = 31 // f32 (31-32), Ncm
	CapperTorqueInSpec   = 33 // bool
	CapperCapFeedOK      = 34 // bool

	CheckweigherGrossWeightHi = 36 // f32 (36-37), g
	CheckweigherWeightInSpec  = 38 // bool
	CheckweigherRezeroActive  = 39 // bool

	Labeller1Applied  = 41 // bool
	Labeller1SensorOK = 42 // bool
	Labeller1StockPct = 43 // u16 %

	ScannerBarcodeOK    = 45 // bool
	ScannerRescanCount  = 46 // u16

	Labeller2HazardRequired = 48 // bool
	Labeller2HazardApplied  = 49 // bool
	Labeller2HazardStockPct = 50 // u16 %

	PusherRejectTriggered = 52 // bool
	PusherRejectReason    = 53 // u16, 0-5
	PusherCycleMsHi       = 54 // u32 (54-55), ms
)

// Line state codes, spec.md §3/§6.
const (
	StateIdle = iota
	StateRunning
	StateMicrostop
	StateStopped
	StateFault
	StateChangeover
	StateCIP
)

var stateNames = map[int]string{
	StateIdle:       "IDLE",
	StateRunning:    "RUNNING",
	StateMicrostop:  "MICROSTOP",
	StateStopped:    "STOPPED",
	StateFault:      "FAULT",
	StateChangeover: "CHANGEOVER",
	StateCIP:        "CIP",
}

// StateName returns the canonical name for a line-state code.
func StateName(s int) string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// IdleIndex is the sentinel value for order_idx/sku_idx when no order is
// active.
const IdleIndex = 0xFFFF

// StopCodeMap maps catalog codes (microstops, changeover/break stops, major
// and minor breakdowns) onto the register's stop_code values. Index 0 means
// "no stop".
var StopCodeMap = map[string]uint16{
	"MS01": 1, "MS02": 2, "MS03": 3, "MS04": 4, "MS05": 5,
	"MS06": 6, "MS07": 7, "MS08": 8, "MS09": 9, "MS10": 10,
	"ST01": 11, "ST02": 12, "ST03": 13, "ST04": 14, "ST05": 15,
	"ST06": 16, "ST07": 17, "ST08": 18, "ST09": 19, "ST10": 20,
	"BD-M1": 21, "BD-M2": 22, "BD-M3": 23,
	"BD-MINOR-PE": 24, "BD-MINOR-LS": 25, "BD-MINOR-CA": 26,
}

// StopCodeFor looks up a catalog code, returning 0 ("none") for an unknown
// or empty code.
func StopCodeFor(code string) uint16 {
	return StopCodeMap[code]
}

// FaultCodeMap is the compact integer encoding used by fault_code: only
// major breakdowns set it, minor breakdowns and microstops do not.
var FaultCodeMap = map[string]uint16{
	"BD-M1": 1, "BD-M2": 2, "BD-M3": 3,
}

// RejectReasonMap encodes pusher.reject_reason.
var RejectReasonMap = map[string]uint16{
	"weight": 1, "torque": 2, "barcode": 3, "label": 4, "hazard_label": 5,
}
