// Package catalog holds the static reference data a running line draws
// on: SKUs and liquid bases, the production schedule, and the microstop
// and breakdown tables. None of it changes at runtime — it mirrors the
// Material_Defs / Production_Schedule sheets the original simulator was
// built against.
package catalog

import "github.com/amarach-stackworks/bottlesim/internal/regs"

// FillRateMLPerSec is the global fill rate used to derive fill_time_s for
// every SKU. It is a fixed constant, not read from configuration.
const FillRateMLPerSec = 120.0

// LiquidBase is a liquid recipe shared by one or more SKUs.
type LiquidBase struct {
	BaseID        string
	Name          string
	DensityGML    float64
	Carbonated    bool
	CIPAfterOrders int // 4 for still lines, 0 means "always after a liquid changeover"
}

// SKU is a single finished-goods definition.
type SKU struct {
	SKUID            string
	Name             string
	LiquidBaseID     string
	VolumeML         float64
	TorqueTargetNCm  float64
	HazardFlag       bool
	Market           string
	LabelGroup       string
	NominalSpeedBPM  float64
	WorkMasterID     string
}

// TargetWeightG is volume × the liquid base's density.
func (s SKU) TargetWeightG() float64 {
	return s.VolumeML * LiquidBases[s.LiquidBaseID].DensityGML
}

// FillTimeS is how long, in sim-seconds, it takes to dose VolumeML at
// FillRateMLPerSec.
func (s SKU) FillTimeS() float64 {
	return s.VolumeML / FillRateMLPerSec
}

// FillTimeMs is FillTimeS in whole milliseconds.
func (s SKU) FillTimeMs() int64 {
	return int64(s.FillTimeS() * 1000)
}

// LiquidBases is keyed by base id.
var LiquidBases = map[string]LiquidBase{
	"BASE-LEM": {"BASE-LEM", "Lemon Base", 1.01, false, 4},
	"BASE-DL":  {"BASE-DL", "Diet Lemon Base", 1.02, false, 4},
	"BASE-COL": {"BASE-COL", "Cola Base", 1.04, true, 0},
	"BASE-DC":  {"BASE-DC", "Diet Cola Base", 1.02, true, 0},
}

// SKUs is keyed by sku id.
var SKUs = map[string]SKU{
	"LEM-200-IE":  {"LEM-200-IE", "Lemon 200mL", "BASE-LEM", 200, 32, false, "IE", "LBL-A", 120, "WM-001"},
	"LEM-500-IE":  {"LEM-500-IE", "Lemon 500mL", "BASE-LEM", 500, 34, false, "IE", "LBL-A", 100, "WM-002"},
	"LEM-2L-IE":   {"LEM-2L-IE", "Lemon 2L", "BASE-LEM", 2000, 36, false, "IE", "LBL-A", 60, "WM-003"},
	"LEM-6L-IE":   {"LEM-6L-IE", "Lemon 6L", "BASE-LEM", 6000, 40, false, "IE", "LBL-A", 30, "WM-004"},
	"DL-200-IE":   {"DL-200-IE", "Diet Lemon 200mL", "BASE-DL", 200, 32, false, "IE", "LBL-B", 120, "WM-001"},
	"DL-500-IE":   {"DL-500-IE", "Diet Lemon 500mL", "BASE-DL", 500, 34, false, "IE", "LBL-B", 100, "WM-002"},
	"COL-500-IE":  {"COL-500-IE", "Cola 500mL", "BASE-COL", 500, 34, false, "IE", "LBL-C", 95, "WM-005"},
	"COL-2L-IE":   {"COL-2L-IE", "Cola 2L", "BASE-COL", 2000, 36, false, "IE", "LBL-C", 55, "WM-005"},
	"DC-500-IE":   {"DC-500-IE", "Diet Cola 500mL IE", "BASE-DC", 500, 34, true, "IE", "LBL-D", 95, "WM-006"},
	"DC-500-UK":   {"DC-500-UK", "Diet Cola 500mL UK", "BASE-DC", 500, 34, true, "UK", "LBL-E", 95, "WM-006"},
}

// SKUList fixes the sku_idx ↔ sku_id mapping used on the wire.
var SKUList = []string{
	"LEM-200-IE", "LEM-500-IE", "LEM-2L-IE", "LEM-6L-IE",
	"DL-200-IE", "DL-500-IE", "COL-500-IE", "COL-2L-IE",
	"DC-500-IE", "DC-500-UK",
}

// GetSKU looks up a SKU by id; ok is false for an unknown id.
func GetSKU(skuID string) (SKU, bool) {
	s, ok := SKUs[skuID]
	return s, ok
}

// SKUIndex returns the wire index for skuID, or regs.IdleIndex if unknown.
func SKUIndex(skuID string) int {
	for i, id := range SKUList {
		if id == skuID {
			return i
		}
	}
	return regs.IdleIndex
}

// SKUFromIndex is the inverse of SKUIndex.
func SKUFromIndex(idx int) (SKU, bool) {
	if idx < 0 || idx >= len(SKUList) {
		return SKU{}, false
	}
	return GetSKU(SKUList[idx])
}
