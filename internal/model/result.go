package model

import (
	"encoding/json"
	"time"
)

// DifficultyScore aggregates grading outcomes for one difficulty level.
type DifficultyScore struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Marks   float64 `json:"marks"`
}

// Result is the persisted outcome of one evaluated paper. Exactly one row per
// (exam, student): a later attempt replaces the earlier row. Rank is dense
// over the exam's result set, recomputed after every evaluation.
// swagger:model Result
type Result struct {
	BaseModel
	PaperID        string          `gorm:"type:varchar(36);not null;uniqueIndex" json:"paper_id"`
	ExamID         uint            `gorm:"not null;uniqueIndex:idx_result_exam_student;index" json:"exam_id"`
	StudentID      uint            `gorm:"not null;uniqueIndex:idx_result_exam_student;index" json:"student_id"`
	TotalQuestions int             `gorm:"not null" json:"total_questions"`
	Attempted      int             `gorm:"not null" json:"attempted"`
	Correct        int             `gorm:"not null" json:"correct"`
	Wrong          int             `gorm:"not null" json:"wrong"`
	TotalMarks     float64         `gorm:"not null" json:"total_marks"`
	MarksObtained  float64         `gorm:"not null;index" json:"marks_obtained"`
	Percentage     float64         `gorm:"not null" json:"percentage"`
	IsPassed       bool            `gorm:"not null" json:"is_passed"`
	Rank           int             `gorm:"default:0" json:"rank"`
	Breakdown      json.RawMessage `gorm:"column:difficulty_breakdown;type:json" json:"-"`
	SubmittedAt    time.Time       `gorm:"not null;index" json:"submitted_at"`
	EvaluatedAt    time.Time       `gorm:"not null" json:"evaluated_at"`
}

func (Result) TableName() string {
	return "results"
}

// DifficultyBreakdown decodes the per-difficulty aggregates.
func (r *Result) DifficultyBreakdown() (map[Difficulty]DifficultyScore, error) {
	if len(r.Breakdown) == 0 {
		return nil, nil
	}
	var m map[Difficulty]DifficultyScore
	if err := json.Unmarshal(r.Breakdown, &m); err != nil {
		return nil, err
	}
	return m, nil
}
