package scoring

import (
	"errors"
	"testing"
)

func TestSheetSelectValidates(t *testing.T) {
	sheet, err := NewSheet(180)
	if err != nil {
		t.Fatalf("NewSheet: %v", err)
	}

	if err := sheet.Select(1, 3); err != nil {
		t.Fatalf("Select(1, 3): %v", err)
	}
	if err := sheet.Select(180, 4); err != nil {
		t.Fatalf("Select(180, 4): %v", err)
	}

	if err := sheet.Select(0, 1); !errors.Is(err, ErrQuestionOutOfRange) {
		t.Fatalf("Select(0, 1) err = %v, want ErrQuestionOutOfRange", err)
	}
	if err := sheet.Select(181, 1); !errors.Is(err, ErrQuestionOutOfRange) {
		t.Fatalf("Select(181, 1) err = %v, want ErrQuestionOutOfRange", err)
	}
	if err := sheet.Select(5, 0); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("Select(5, 0) err = %v, want ErrInvalidOption", err)
	}
	if err := sheet.Select(5, 5); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("Select(5, 5) err = %v, want ErrInvalidOption", err)
	}

	// Rejected selections must not be stored.
	if got := sheet.Answered(); got != 2 {
		t.Fatalf("Answered() = %d, want 2", got)
	}
}

func TestSheetSelectOverwrites(t *testing.T) {
	sheet, _ := NewSheet(10)
	_ = sheet.Select(7, 1)
	_ = sheet.Select(7, 4)

	snap := sheet.Snapshot()
	if snap[7] != 4 {
		t.Fatalf("snapshot[7] = %d, want 4", snap[7])
	}
	if sheet.Answered() != 1 {
		t.Fatalf("Answered() = %d, want 1", sheet.Answered())
	}
}

func TestSheetSnapshotIsIsolated(t *testing.T) {
	sheet, _ := NewSheet(10)
	_ = sheet.Select(1, 2)

	snap := sheet.Snapshot()
	_ = sheet.Select(1, 3)
	_ = sheet.Select(2, 1)

	if snap[1] != 2 {
		t.Fatalf("snapshot mutated: snap[1] = %d, want 2", snap[1])
	}
	if len(snap) != 1 {
		t.Fatalf("snapshot grew: len = %d, want 1", len(snap))
	}
}

func TestNewSheetRejectsNegativeCount(t *testing.T) {
	if _, err := NewSheet(-1); err == nil {
		t.Fatal("NewSheet(-1) succeeded, want error")
	}
}
