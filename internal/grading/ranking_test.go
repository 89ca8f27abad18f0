package grading

import (
	"testing"
	"time"

	"exam_platform_backend/internal/model"
)

func res(id uint, marks float64, submitted time.Time) *model.Result {
	r := &model.Result{MarksObtained: marks, SubmittedAt: submitted}
	r.ID = id
	return r
}

func TestAssignRanksOrdersByMarks(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []*model.Result{
		res(1, 40, base),
		res(2, 90, base.Add(time.Minute)),
		res(3, 70, base.Add(2*time.Minute)),
	}

	AssignRanks(results)

	got := map[uint]int{}
	for _, r := range results {
		got[r.ID] = r.Rank
	}
	want := map[uint]int{2: 1, 3: 2, 1: 3}
	for id, rank := range want {
		if got[id] != rank {
			t.Errorf("result %d rank = %d, want %d", id, got[id], rank)
		}
	}
}

func TestAssignRanksTieBrokenByEarlierSubmission(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []*model.Result{
		res(1, 80, base.Add(5*time.Minute)), // later submit, same marks
		res(2, 80, base),                    // earlier submit wins the tie
		res(3, 60, base),
	}

	AssignRanks(results)

	byID := map[uint]*model.Result{}
	for _, r := range results {
		byID[r.ID] = r
	}
	if byID[2].Rank != 1 {
		t.Errorf("earlier submitter rank = %d, want 1", byID[2].Rank)
	}
	if byID[1].Rank != 2 {
		t.Errorf("later submitter rank = %d, want 2", byID[1].Rank)
	}
	if byID[3].Rank != 3 {
		t.Errorf("lower marks rank = %d, want 3 (dense, no gaps)", byID[3].Rank)
	}
}

func TestAssignRanksIdenticalRowsShareRank(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []*model.Result{
		res(1, 50, at),
		res(2, 50, at),
		res(3, 10, at.Add(time.Minute)),
	}

	AssignRanks(results)

	if results[0].Rank != 1 || results[1].Rank != 1 {
		t.Errorf("tied rows ranks = %d,%d, want 1,1", results[0].Rank, results[1].Rank)
	}
	if results[2].Rank != 2 {
		t.Errorf("next distinct rank = %d, want 2 (dense)", results[2].Rank)
	}
}

// Higher marks must never rank worse than lower marks, for any input order.
func TestAssignRanksMonotonic(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []*model.Result{
		res(1, 10, base.Add(3*time.Minute)),
		res(2, 95, base.Add(9*time.Minute)),
		res(3, 95, base.Add(time.Minute)),
		res(4, 42, base),
		res(5, 42, base),
		res(6, 0, base.Add(4*time.Minute)),
	}

	AssignRanks(results)

	for _, a := range results {
		for _, b := range results {
			if a.MarksObtained > b.MarksObtained && a.Rank >= b.Rank {
				t.Errorf("result %d (marks %v, rank %d) ranked no better than result %d (marks %v, rank %d)",
					a.ID, a.MarksObtained, a.Rank, b.ID, b.MarksObtained, b.Rank)
			}
		}
	}

	// Ranks are dense: the set of assigned ranks is 1..max with no gaps.
	seen := map[int]bool{}
	max := 0
	for _, r := range results {
		seen[r.Rank] = true
		if r.Rank > max {
			max = r.Rank
		}
	}
	for i := 1; i <= max; i++ {
		if !seen[i] {
			t.Errorf("rank %d missing, ranks must be gap-free", i)
		}
	}
}

func TestAssignRanksRecomputationIsTotal(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := res(1, 30, base)
	second := res(2, 50, base.Add(time.Minute))

	AssignRanks([]*model.Result{first, second})
	if second.Rank != 1 || first.Rank != 2 {
		t.Fatalf("initial ranks = %d,%d, want 1,2", second.Rank, first.Rank)
	}

	// A regrade lifts the first result past the second; a full recomputation
	// must swap both ranks, not only the changed row.
	first.MarksObtained = 80
	AssignRanks([]*model.Result{first, second})
	if first.Rank != 1 || second.Rank != 2 {
		t.Errorf("post-regrade ranks = %d,%d, want 1,2", first.Rank, second.Rank)
	}
}
