package worker

import (
	"testing"

	"github.com/google/uuid"

	"github.com/axisprep/mocktest-backend/internal/repository"
)

func TestDedupeAnswersKeepsLatestSelection(t *testing.T) {
	testID := uuid.New()

	// A student changing question 5 from option 2 to 3 within one batch
	// window: the flush must carry only the final choice.
	batch := []repository.SheetAnswer{
		{UserID: 7, TestID: testID, Question: 5, Option: 2},
		{UserID: 7, TestID: testID, Question: 9, Option: 1},
		{UserID: 7, TestID: testID, Question: 5, Option: 3},
	}

	out := dedupeAnswers(batch)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Question != 5 || out[0].Option != 3 {
		t.Errorf("out[0] = q%d opt%d, want q5 opt3", out[0].Question, out[0].Option)
	}
	if out[1].Question != 9 || out[1].Option != 1 {
		t.Errorf("out[1] = q%d opt%d, want q9 opt1", out[1].Question, out[1].Option)
	}
}

func TestDedupeAnswersLeavesDistinctRowsAlone(t *testing.T) {
	testA, testB := uuid.New(), uuid.New()

	// Same question number across different users and tests is not a
	// duplicate.
	batch := []repository.SheetAnswer{
		{UserID: 1, TestID: testA, Question: 5, Option: 1},
		{UserID: 2, TestID: testA, Question: 5, Option: 2},
		{UserID: 1, TestID: testB, Question: 5, Option: 3},
	}

	out := dedupeAnswers(batch)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	for i := range batch {
		if out[i] != batch[i] {
			t.Errorf("out[%d] = %+v, want %+v", i, out[i], batch[i])
		}
	}
}
