package encoder

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	long := make([]float32, MaxSamples+100)
	if got := len(Truncate(long)); got != MaxSamples {
		t.Errorf("truncated to %d, want %d", got, MaxSamples)
	}

	short := make([]float32, 100)
	if got := len(Truncate(short)); got != 100 {
		t.Errorf("short input changed length: %d", got)
	}
}

func TestPool(t *testing.T) {
	hidden := [][]float32{
		{1, 2},
		{3, 4},
	}
	pooled, err := Pool(hidden)
	if err != nil {
		t.Fatal(err)
	}
	if len(pooled) != 2 {
		t.Fatalf("got %d dims, want 2", len(pooled))
	}
	if pooled[0] != 2 || pooled[1] != 3 {
		t.Errorf("pooled = %v, want [2 3]", pooled)
	}
}

func TestPoolEmpty(t *testing.T) {
	if _, err := Pool(nil); err == nil {
		t.Error("expected error for empty sequence")
	}
}

func TestPoolRagged(t *testing.T) {
	hidden := [][]float32{
		{1, 2},
		{3},
	}
	if _, err := Pool(hidden); err == nil {
		t.Error("expected error for ragged rows")
	}
}
