package grading

import (
	"sort"

	"exam_platform_backend/internal/model"
)

// AssignRanks orders an exam's full result set and writes dense, gap-free
// ranks. Ordering: marks obtained descending, then earlier submission, then
// row id for determinism. Ties in marks are broken by submission time (the
// earlier submitter takes the better rank); rows equal in both marks and
// submission instant share a rank and the next distinct row advances by one.
//
// The function is total over the given slice: callers must pass every result
// of the exam, not a delta, so a regrade of an earlier result reorders
// everyone correctly.
func AssignRanks(results []*model.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].MarksObtained != results[j].MarksObtained {
			return results[i].MarksObtained > results[j].MarksObtained
		}
		if !results[i].SubmittedAt.Equal(results[j].SubmittedAt) {
			return results[i].SubmittedAt.Before(results[j].SubmittedAt)
		}
		return results[i].ID < results[j].ID
	})

	rank := 0
	for i, r := range results {
		if i == 0 ||
			r.MarksObtained != results[i-1].MarksObtained ||
			!r.SubmittedAt.Equal(results[i-1].SubmittedAt) {
			rank++
		}
		r.Rank = rank
	}
}
