// Package scoring implements the fixed NEET/JEE marking scheme: +4 for a
// correct answer, -1 for a wrong answer, 0 for an unattempted question.
// Everything here is pure and does no I/O so it can be graded against in RAM.
package scoring

// Marking scheme.
const (
	MarksCorrect = 4
	MarksWrong   = -1
)

// Key is the authoritative question number -> correct option mapping for a
// test. Immutable once published.
type Key map[int]int

// NewKey validates a raw mapping and returns it as a Key. Every entry must be
// inside the [1, totalQuestions] x [1, 4] domain.
func NewKey(raw map[int]int, totalQuestions int) (Key, error) {
	key := make(Key, len(raw))
	for q, opt := range raw {
		if err := ValidateSelection(q, opt, totalQuestions); err != nil {
			return nil, err
		}
		key[q] = opt
	}
	return key, nil
}

// Breakdown is the result of grading one sheet snapshot.
type Breakdown struct {
	Score       int `json:"score"`
	Correct     int `json:"correct"`
	Wrong       int `json:"wrong"`
	Unattempted int `json:"unattempted"`
}

// Score grades a sheet snapshot against an answer key.
//
// For each question 1..totalQuestions: an absent snapshot entry is
// unattempted; an answered question whose number has no key entry counts as
// wrong (an incomplete key must never silently award marks); otherwise the
// selection is compared against the key. Snapshot entries outside
// 1..totalQuestions are ignored. The score can be negative and is not clamped.
func Score(snapshot map[int]int, key Key, totalQuestions int) Breakdown {
	var b Breakdown
	for q := 1; q <= totalQuestions; q++ {
		selected, attempted := snapshot[q]
		if !attempted {
			b.Unattempted++
			continue
		}
		if correct, ok := key[q]; ok && selected == correct {
			b.Correct++
			b.Score += MarksCorrect
		} else {
			b.Wrong++
			b.Score += MarksWrong
		}
	}
	return b
}
