package catalog

import (
	"os"

	"github.com/amarach-stackworks/bottlesim/internal/logging"
)

// Entry is one line on the production schedule: an order, a changeover, a
// CIP wash, or a break. Entry_type discriminates which fields apply —
// mirroring schedule.py's single wide dataclass rather than a Go sum type,
// since the built-in table below is far easier to read in that shape.
type Entry struct {
	EntryID   string
	EntryType string // ORDER | CHANGEOVER | CIP | BREAK
	Day       string
	Shift     string

	WorkMasterID string
	SKUID        string
	PlannedQty   int

	ChangeoverType        string // LABEL | SIZE | LIQUID
	ChangeoverCode        string // ST01 / ST02 / ST03
	ChangeoverDurMinLo    int
	ChangeoverDurMinHi    int

	CIPDurationMin int

	BreakDurationMin int

	InjectBreakdown string // BD-M1 / BD-M2 / BD-M3, optional

	CIPAfter bool

	PrecedingChangeover string // ST01/ST02/ST03, optional

	Notes string
}

// BuiltInSchedule mirrors the Production_Schedule sheet.
var BuiltInSchedule = []Entry{
	{EntryID: "ORD-001", EntryType: "ORDER", Day: "Mon", Shift: "Shift 1", WorkMasterID: "WM-002", SKUID: "LEM-500-IE", PlannedQty: 4000, Notes: "Opening order"},
	{EntryID: "ORD-002", EntryType: "ORDER", Day: "Mon", Shift: "Shift 1", WorkMasterID: "WM-001", SKUID: "LEM-200-IE", PlannedQty: 3000,
		PrecedingChangeover: "ST01", ChangeoverCode: "ST01", ChangeoverType: "LABEL", ChangeoverDurMinLo: 20, ChangeoverDurMinHi: 25,
		Notes: "Label changeover LBL-A"},
	{EntryID: "ORD-003", EntryType: "ORDER", Day: "Mon", Shift: "Shift 1", WorkMasterID: "WM-003", SKUID: "LEM-2L-IE", PlannedQty: 1200,
		PrecedingChangeover: "ST02", ChangeoverCode: "ST02", ChangeoverType: "SIZE", ChangeoverDurMinLo: 40, ChangeoverDurMinHi: 50,
		InjectBreakdown: "BD-M1", Notes: "Size change 200→2L. BD-M1 injected"},
	{EntryID: "CIP-001", EntryType: "CIP", Day: "Mon", Shift: "Shift 1", CIPDurationMin: 45, Notes: "After 3rd order"},

	{EntryID: "ORD-004", EntryType: "ORDER", Day: "Mon", Shift: "Shift 2", WorkMasterID: "WM-005", SKUID: "COL-500-IE", PlannedQty: 3800,
		PrecedingChangeover: "ST03", ChangeoverCode: "ST03", ChangeoverType: "LIQUID", ChangeoverDurMinLo: 60, ChangeoverDurMinHi: 90,
		Notes: "Liquid change Still→Cola. CO includes CIP."},
	{EntryID: "ORD-005", EntryType: "ORDER", Day: "Mon", Shift: "Shift 2", WorkMasterID: "WM-006", SKUID: "DC-500-IE", PlannedQty: 2500,
		InjectBreakdown: "BD-M2", Notes: "Hazard SKU. BD-M2 injected"},
	{EntryID: "ORD-006-BRK", EntryType: "BREAK", Day: "Mon", Shift: "Shift 2", BreakDurationMin: 30, Notes: "Lunch break"},
	{EntryID: "ORD-006", EntryType: "ORDER", Day: "Mon", Shift: "Shift 2", WorkMasterID: "WM-005", SKUID: "COL-2L-IE", PlannedQty: 800,
		PrecedingChangeover: "ST02", ChangeoverCode: "ST02", ChangeoverType: "SIZE", ChangeoverDurMinLo: 35, ChangeoverDurMinHi: 45,
		Notes: "Size change 500→2L"},

	{EntryID: "ORD-007", EntryType: "ORDER", Day: "Tue", Shift: "Shift 1", WorkMasterID: "WM-002", SKUID: "LEM-500-IE", PlannedQty: 5000,
		PrecedingChangeover: "ST03", ChangeoverCode: "ST03", ChangeoverType: "LIQUID", ChangeoverDurMinLo: 60, ChangeoverDurMinHi: 90,
		InjectBreakdown: "BD-M3", Notes: "Liquid change Cola→Lemon. BD-M3 injected"},
	{EntryID: "ORD-008", EntryType: "ORDER", Day: "Tue", Shift: "Shift 1", WorkMasterID: "WM-002", SKUID: "LEM-500-IE", PlannedQty: 4000,
		Notes: "Continuation same SKU"},
	{EntryID: "ORD-009", EntryType: "ORDER", Day: "Tue", Shift: "Shift 1", WorkMasterID: "WM-004", SKUID: "LEM-6L-IE", PlannedQty: 300,
		PrecedingChangeover: "ST02", ChangeoverCode: "ST02", ChangeoverType: "SIZE", ChangeoverDurMinLo: 40, ChangeoverDurMinHi: 55,
		CIPAfter: true, Notes: "6L format. High MS02 risk. CIP after."},
	{EntryID: "CIP-002", EntryType: "CIP", Day: "Tue", Shift: "Shift 1", CIPDurationMin: 45, Notes: "After 4th order"},

	{EntryID: "ORD-010", EntryType: "ORDER", Day: "Tue", Shift: "Shift 2", WorkMasterID: "WM-006", SKUID: "DC-500-UK", PlannedQty: 2000,
		PrecedingChangeover: "ST03", ChangeoverCode: "ST03", ChangeoverType: "LIQUID", ChangeoverDurMinLo: 60, ChangeoverDurMinHi: 90,
		Notes: "UK hazard variant. Liquid CO."},
	{EntryID: "ORD-011", EntryType: "ORDER", Day: "Tue", Shift: "Shift 2", WorkMasterID: "WM-002", SKUID: "LEM-500-IE", PlannedQty: 4500,
		PrecedingChangeover: "ST03", ChangeoverCode: "ST03", ChangeoverType: "LIQUID", ChangeoverDurMinLo: 60, ChangeoverDurMinHi: 90,
		Notes: "Long order. Cola→Still. Minor stops here."},

	{EntryID: "ORD-012", EntryType: "ORDER", Day: "Wed", Shift: "Shift 1", WorkMasterID: "WM-001", SKUID: "LEM-200-IE", PlannedQty: 5000,
		PrecedingChangeover: "ST02", ChangeoverCode: "ST02", ChangeoverType: "SIZE", ChangeoverDurMinLo: 35, ChangeoverDurMinHi: 50,
		Notes: "500→200mL"},
	{EntryID: "ORD-013", EntryType: "ORDER", Day: "Wed", Shift: "Shift 1", WorkMasterID: "WM-003", SKUID: "LEM-2L-IE", PlannedQty: 1500,
		PrecedingChangeover: "ST02", ChangeoverCode: "ST02", ChangeoverType: "SIZE", ChangeoverDurMinLo: 40, ChangeoverDurMinHi: 55,
		Notes: "200→2L"},
	{EntryID: "ORD-014", EntryType: "ORDER", Day: "Wed", Shift: "Shift 1", WorkMasterID: "WM-002", SKUID: "LEM-500-IE", PlannedQty: 3500,
		PrecedingChangeover: "ST02", ChangeoverCode: "ST02", ChangeoverType: "SIZE", ChangeoverDurMinLo: 35, ChangeoverDurMinHi: 45,
		CIPAfter: true, Notes: "4th order — CIP follows"},
	{EntryID: "CIP-003", EntryType: "CIP", Day: "Wed", Shift: "Shift 1", CIPDurationMin: 45},

	{EntryID: "ORD-015", EntryType: "ORDER", Day: "Wed", Shift: "Shift 2", WorkMasterID: "WM-005", SKUID: "COL-500-IE", PlannedQty: 4000,
		PrecedingChangeover: "ST03", ChangeoverCode: "ST03", ChangeoverType: "LIQUID", ChangeoverDurMinLo: 60, ChangeoverDurMinHi: 90,
		Notes: "Still→Cola"},
	{EntryID: "ORD-015-BRK", EntryType: "BREAK", Day: "Wed", Shift: "Shift 2", BreakDurationMin: 30},
	{EntryID: "ORD-016", EntryType: "ORDER", Day: "Wed", Shift: "Shift 2", WorkMasterID: "WM-002", SKUID: "LEM-500-IE", PlannedQty: 3000,
		PrecedingChangeover: "ST03", ChangeoverCode: "ST03", ChangeoverType: "LIQUID", ChangeoverDurMinLo: 60, ChangeoverDurMinHi: 90,
		Notes: "Cola→Still"},

	{EntryID: "ORD-017", EntryType: "ORDER", Day: "Thu", Shift: "Shift 1", WorkMasterID: "WM-002", SKUID: "LEM-500-IE", PlannedQty: 5000,
		Notes: "Long run — minor stops distributed"},

	{EntryID: "ORD-018", EntryType: "ORDER", Day: "Thu", Shift: "Shift 2", WorkMasterID: "WM-006", SKUID: "DC-500-IE", PlannedQty: 3500,
		PrecedingChangeover: "ST03", ChangeoverCode: "ST03", ChangeoverType: "LIQUID", ChangeoverDurMinLo: 60, ChangeoverDurMinHi: 90,
		Notes: "Hazard run"},

	{EntryID: "ORD-019", EntryType: "ORDER", Day: "Fri", Shift: "Shift 1", WorkMasterID: "WM-002", SKUID: "LEM-500-IE", PlannedQty: 4500,
		PrecedingChangeover: "ST03", ChangeoverCode: "ST03", ChangeoverType: "LIQUID", ChangeoverDurMinLo: 60, ChangeoverDurMinHi: 90,
		Notes: "End of week"},

	{EntryID: "ORD-020", EntryType: "ORDER", Day: "Fri", Shift: "Shift 2", WorkMasterID: "WM-001", SKUID: "LEM-200-IE", PlannedQty: 4000,
		PrecedingChangeover: "ST02", ChangeoverCode: "ST02", ChangeoverType: "SIZE", ChangeoverDurMinLo: 35, ChangeoverDurMinHi: 45,
		Notes: "Final order"},
}

// LoadSchedule returns the built-in schedule, with unknown sku ids on
// ORDER entries dropped (spec.md §9 Open Question 1: skip rather than
// abort). If xlsxPath names a file that exists, its presence is logged but
// the built-in table is still used — the Excel loader is reserved for a
// future phase, exactly as schedule.py's load_schedule notes.
func LoadSchedule(xlsxPath string) []Entry {
	log := logging.For("schedule")
	if xlsxPath != "" {
		if _, err := os.Stat(xlsxPath); err == nil {
			log.Infof("Excel schedule found at %s — using built-in (Excel loader Phase 2)", xlsxPath)
		}
	}

	out := make([]Entry, 0, len(BuiltInSchedule))
	for _, e := range BuiltInSchedule {
		if e.EntryType == "ORDER" {
			if _, ok := GetSKU(e.SKUID); !ok {
				log.Warnf("schedule entry %s references unknown sku %q — skipped", e.EntryID, e.SKUID)
				continue
			}
		}
		out = append(out, e)
	}
	log.Infof("using production schedule (%d entries)", len(out))
	return out
}
