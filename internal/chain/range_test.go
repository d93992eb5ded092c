package chain

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{{From: 5, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeUneven(t *testing.T) {
	got, err := SplitRange(0, 50_000, 10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("expected 6 batches, got %d", len(got))
	}
	if got[5] != (BlockRange{From: 50_000, To: 50_000}) {
		t.Fatalf("last batch mismatch: %+v", got[5])
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestWindow(t *testing.T) {
	if got := Window(120_000, 50_000); got != (BlockRange{From: 70_000, To: 120_000}) {
		t.Fatalf("window mismatch: %+v", got)
	}
	if got := Window(10_000, 50_000); got != (BlockRange{From: 0, To: 10_000}) {
		t.Fatalf("window should clamp at genesis: %+v", got)
	}
	if got := Window(10, 0); got != (BlockRange{From: 0, To: 10}) {
		t.Fatalf("zero window should scan from genesis: %+v", got)
	}
}
