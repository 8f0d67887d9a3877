package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name      string
		mint      string
		sequence  int
		entryTime int64
	}{
		{
			name:      "first trade",
			mint:      "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
			sequence:  1,
			entryTime: 1704067234567,
		},
		{
			name:      "re-entry",
			mint:      "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
			sequence:  2,
			entryTime: 1704067300000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.mint, tt.sequence, tt.entryTime)
			if len(got) != 64 {
				t.Errorf("ComputeTradeID() length = %d, want 64", len(got))
			}
			if got2 := ComputeTradeID(tt.mint, tt.sequence, tt.entryTime); got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("mint", 1, 1000)

	if base == ComputeTradeID("other_mint", 1, 1000) {
		t.Error("Different mint should produce different hash")
	}
	if base == ComputeTradeID("mint", 2, 1000) {
		t.Error("Different sequence should produce different hash")
	}
	if base == ComputeTradeID("mint", 1, 2000) {
		t.Error("Different entry time should produce different hash")
	}
}

func TestComputeTickID(t *testing.T) {
	a := ComputeTickID("mint", "poll", 1000)
	if len(a) != 64 {
		t.Fatalf("ComputeTickID() length = %d, want 64", len(a))
	}
	if a != ComputeTickID("mint", "poll", 1000) {
		t.Error("ComputeTickID() not deterministic")
	}
	if a == ComputeTickID("mint", "ingest", 1000) {
		t.Error("Different source should produce different hash")
	}
}
