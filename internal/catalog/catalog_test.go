package catalog

import (
	"math/rand"
	"testing"

	"github.com/amarach-stackworks/bottlesim/internal/regs"
)

func TestSKUIndexRoundTrip(t *testing.T) {
	for i, id := range SKUList {
		if got := SKUIndex(id); got != i {
			t.Errorf("SKUIndex(%q) = %d, want %d", id, got, i)
		}
		sku, ok := SKUFromIndex(i)
		if !ok || sku.SKUID != id {
			t.Errorf("SKUFromIndex(%d) = %+v, ok=%v, want %q", i, sku, ok, id)
		}
	}
}

func TestSKUIndexUnknownIsIdleSentinel(t *testing.T) {
	if got := SKUIndex("NOT-A-SKU"); got != regs.IdleIndex {
		t.Errorf("SKUIndex(unknown) = %d, want %d", got, regs.IdleIndex)
	}
	if _, ok := SKUFromIndex(regs.IdleIndex); ok {
		t.Error("SKUFromIndex(IdleIndex) should report not-found")
	}
}

func TestTargetWeightUsesLiquidBaseDensity(t *testing.T) {
	sku := SKUs["LEM-200-IE"]
	want := 200 * LiquidBases["BASE-LEM"].DensityGML
	if got := sku.TargetWeightG(); got != want {
		t.Errorf("TargetWeightG() = %v, want %v", got, want)
	}
}

func TestLoadScheduleSkipsUnknownSKU(t *testing.T) {
	orig := BuiltInSchedule
	defer func() { BuiltInSchedule = orig }()
	BuiltInSchedule = []Entry{
		{EntryID: "ORD-X", EntryType: "ORDER", SKUID: "NOT-A-SKU", PlannedQty: 10},
		{EntryID: "ORD-Y", EntryType: "ORDER", SKUID: "LEM-200-IE", PlannedQty: 10},
		{EntryID: "CIP-X", EntryType: "CIP", CIPDurationMin: 45},
	}
	got := LoadSchedule("")
	if len(got) != 2 {
		t.Fatalf("LoadSchedule() returned %d entries, want 2 (unknown-sku order skipped): %+v", len(got), got)
	}
	if got[0].EntryID != "ORD-Y" {
		t.Errorf("first entry = %q, want ORD-Y", got[0].EntryID)
	}
}

func TestPickMicrostopBiasesMS02ForLargeVolumeSKU(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		ms := PickMicrostop(rng, "LEM-2L-IE")
		counts[ms.Code]++
	}

	rngBase := rand.New(rand.NewSource(1))
	baseCounts := map[string]int{}
	for i := 0; i < n; i++ {
		ms := PickMicrostop(rngBase, "LEM-500-IE")
		baseCounts[ms.Code]++
	}

	if counts["MS02"] <= baseCounts["MS02"] {
		t.Errorf("MS02 count for biased SKU (%d) should exceed unbiased (%d)", counts["MS02"], baseCounts["MS02"])
	}
}

func TestSampleDurationWithinRange(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	ms := Microstops[0]
	for i := 0; i < 1000; i++ {
		d := SampleDuration(rng, ms)
		if d < ms.DurationLoS || d > ms.DurationHiS {
			t.Fatalf("SampleDuration() = %v, want within [%v, %v]", d, ms.DurationLoS, ms.DurationHiS)
		}
	}
}

func TestMutateFillStabilisationClearsScaleStable(t *testing.T) {
	local := make([]uint16, regs.TotalRegisters)
	local[regs.FillerScaleStable] = 1
	rng := rand.New(rand.NewSource(3))
	ms, _ := GetMicrostop("MS02")
	Mutate(rng, ms, local)
	if got := local[regs.FillerScaleStable]; got != 0 {
		t.Errorf("FillerScaleStable = %d after MS02 mutation, want 0", got)
	}
}

func TestTriggerOffsetWithinTwentyToFortyPercent(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	plannedQty, speedBPM := 1200, 60.0
	orderDurationS := (float64(plannedQty) / speedBPM) * 60
	for i := 0; i < 1000; i++ {
		off := TriggerOffset(rng, plannedQty, speedBPM)
		if off < 0.20*orderDurationS || off > 0.40*orderDurationS {
			t.Fatalf("TriggerOffset() = %v, want within [%v, %v]", off, 0.20*orderDurationS, 0.40*orderDurationS)
		}
	}
}
