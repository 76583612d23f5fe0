package models

import "testing"

func TestUsageRecordExhausted(t *testing.T) {
	tests := []struct {
		name    string
		current int
		max     int
		want    bool
	}{
		{"fresh free record", 0, 2, false},
		{"one left", 1, 2, false},
		{"at the boundary", 2, 2, true},
		{"over the limit", 3, 2, true},
		{"pro with headroom", 3, 4, false},
		{"unlimited sentinel", 1000, UnlimitedUsage, false},
		{"unlimited at zero", 0, UnlimitedUsage, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := UsageRecord{CurrentUsage: tt.current, MaxUsage: tt.max}
			if got := record.Exhausted(); got != tt.want {
				t.Errorf("Exhausted() with %d/%d = %v, want %v", tt.current, tt.max, got, tt.want)
			}
		})
	}
}

func TestPlanTier(t *testing.T) {
	if PlanFree.Elevated() {
		t.Error("free tier must not be elevated")
	}
	if !PlanPro.Elevated() || !PlanProPlus.Elevated() {
		t.Error("paid tiers must be elevated")
	}
	if !PlanFree.Valid() || !PlanPro.Valid() || !PlanProPlus.Valid() {
		t.Error("known tiers must validate")
	}
	if PlanTier("enterprise").Valid() {
		t.Error("unknown tier must not validate")
	}
}
