package scoring

import (
	"errors"
	"fmt"
)

// Option bounds for an OMR bubble.
const (
	MinOption = 1
	MaxOption = 4
)

// Sentinel errors for invalid selections.
var (
	ErrQuestionOutOfRange = errors.New("question number out of range")
	ErrInvalidOption      = errors.New("option must be between 1 and 4")
)

// ValidateSelection checks a single (question, option) pair against the sheet
// domain: question in [1, totalQuestions], option in [MinOption, MaxOption].
func ValidateSelection(question, option, totalQuestions int) error {
	if question < 1 || question > totalQuestions {
		return fmt.Errorf("%w: %d (total %d)", ErrQuestionOutOfRange, question, totalQuestions)
	}
	if option < MinOption || option > MaxOption {
		return fmt.Errorf("%w: got %d", ErrInvalidOption, option)
	}
	return nil
}

// Sheet is the mutable answer sheet of one live attempt. Keys are sparse: an
// absent question number means unattempted. The zero value is not usable;
// construct with NewSheet.
type Sheet struct {
	answers        map[int]int
	totalQuestions int
}

// NewSheet creates an empty sheet for a paper with the given question count.
func NewSheet(totalQuestions int) (*Sheet, error) {
	if totalQuestions < 0 {
		return nil, fmt.Errorf("invalid question count: %d", totalQuestions)
	}
	return &Sheet{
		answers:        make(map[int]int),
		totalQuestions: totalQuestions,
	}, nil
}

// Select records or overwrites the chosen option for a question.
// Selections outside the sheet domain are rejected, never stored.
func (s *Sheet) Select(question, option int) error {
	if err := ValidateSelection(question, option, s.totalQuestions); err != nil {
		return err
	}
	s.answers[question] = option
	return nil
}

// Snapshot returns a copy of the current selections. Scoring always works on a
// snapshot so later Select calls cannot race the grader.
func (s *Sheet) Snapshot() map[int]int {
	snap := make(map[int]int, len(s.answers))
	for q, opt := range s.answers {
		snap[q] = opt
	}
	return snap
}

// Answered returns the number of questions with a recorded selection.
func (s *Sheet) Answered() int {
	return len(s.answers)
}

// TotalQuestions returns the question count the sheet was created with.
func (s *Sheet) TotalQuestions() int {
	return s.totalQuestions
}
