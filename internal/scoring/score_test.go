package scoring

import "testing"

func key5(t *testing.T) Key {
	t.Helper()
	k, err := NewKey(map[int]int{1: 1, 2: 2, 3: 3, 4: 4, 5: 1}, 5)
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	return k
}

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		snapshot map[int]int
		total    int
		want     Breakdown
	}{
		{
			name:     "mixed attempt",
			snapshot: map[int]int{1: 1, 2: 4, 4: 4},
			total:    5,
			want:     Breakdown{Score: 7, Correct: 2, Wrong: 1, Unattempted: 2},
		},
		{
			name:     "nothing answered",
			snapshot: map[int]int{},
			total:    5,
			want:     Breakdown{Score: 0, Correct: 0, Wrong: 0, Unattempted: 5},
		},
		{
			name:     "nil snapshot",
			snapshot: nil,
			total:    5,
			want:     Breakdown{Score: 0, Correct: 0, Wrong: 0, Unattempted: 5},
		},
		{
			name:     "all correct",
			snapshot: map[int]int{1: 1, 2: 2, 3: 3, 4: 4, 5: 1},
			total:    5,
			want:     Breakdown{Score: 20, Correct: 5, Wrong: 0, Unattempted: 0},
		},
		{
			name:     "all wrong goes negative",
			snapshot: map[int]int{1: 2, 2: 1, 3: 4, 4: 3, 5: 2},
			total:    5,
			want:     Breakdown{Score: -5, Correct: 0, Wrong: 5, Unattempted: 0},
		},
		{
			name:     "out of range entries ignored",
			snapshot: map[int]int{1: 1, 6: 1, 99: 3, 0: 2, -4: 1},
			total:    5,
			want:     Breakdown{Score: 4, Correct: 1, Wrong: 0, Unattempted: 4},
		},
		{
			name:     "zero questions",
			snapshot: map[int]int{1: 1},
			total:    0,
			want:     Breakdown{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.snapshot, key5(t), tc.total)
			if got != tc.want {
				t.Fatalf("Score() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

// An answered question with no key entry must count as wrong, never correct.
func TestScoreMissingKeyEntryIsWrong(t *testing.T) {
	key, err := NewKey(map[int]int{1: 1, 2: 2, 3: 3}, 5)
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}

	got := Score(map[int]int{1: 1, 4: 2, 5: 3}, key, 5)
	want := Breakdown{Score: 2, Correct: 1, Wrong: 2, Unattempted: 2}
	if got != want {
		t.Fatalf("Score() = %+v, want %+v", got, want)
	}
}

func TestScoreDeterministic(t *testing.T) {
	snapshot := map[int]int{1: 1, 2: 3, 3: 3, 5: 2}
	first := Score(snapshot, key5(t), 5)
	for i := 0; i < 10; i++ {
		if got := Score(snapshot, key5(t), 5); got != first {
			t.Fatalf("run %d: Score() = %+v, want %+v", i, got, first)
		}
	}
}

func TestScoreConservationAndFormula(t *testing.T) {
	key := key5(t)
	snapshots := []map[int]int{
		nil,
		{},
		{1: 1},
		{1: 2, 2: 2, 3: 1},
		{1: 1, 2: 2, 3: 3, 4: 4, 5: 1},
		{1: 4, 2: 4, 3: 4, 4: 4, 5: 4},
		{2: 2, 7: 1, 100: 4},
	}

	for _, snap := range snapshots {
		b := Score(snap, key, 5)
		if b.Correct+b.Wrong+b.Unattempted != 5 {
			t.Errorf("snapshot %v: counts %d+%d+%d != 5",
				snap, b.Correct, b.Wrong, b.Unattempted)
		}
		if b.Score != b.Correct*MarksCorrect+b.Wrong*MarksWrong {
			t.Errorf("snapshot %v: score %d != 4*%d - %d",
				snap, b.Score, b.Correct, b.Wrong)
		}
	}
}

func TestNewKeyRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		raw  map[int]int
	}{
		{"question above total", map[int]int{181: 1}},
		{"question zero", map[int]int{0: 1}},
		{"option too large", map[int]int{1: 5}},
		{"option zero", map[int]int{1: 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewKey(tc.raw, 180); err == nil {
				t.Fatalf("NewKey(%v) succeeded, want error", tc.raw)
			}
		})
	}
}
