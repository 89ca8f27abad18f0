package model

import (
	"encoding/json"
	"time"
)

type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamScheduled ExamStatus = "scheduled"
	ExamActive    ExamStatus = "active"
	ExamCompleted ExamStatus = "completed"
	ExamCancelled ExamStatus = "cancelled"
)

// DifficultyDistribution fixes how many questions of each difficulty a paper
// draws from the bank. A zero value (all zeros) means uniform random draw.
type DifficultyDistribution struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

func (d DifficultyDistribution) Total() int {
	return d.Easy + d.Medium + d.Hard
}

// swagger:model Exam
type Exam struct {
	BaseModel
	Title          string     `gorm:"size:200;not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	QuestionBankID uint       `gorm:"not null;index" json:"question_bank_id"`
	TotalQuestions int        `gorm:"not null" json:"total_questions"`
	DurationMin    int        `gorm:"column:duration_minutes;not null" json:"duration_minutes"`
	TotalMarks     float64    `gorm:"not null" json:"total_marks"`
	PassingMarks   float64    `gorm:"not null" json:"passing_marks"`
	StartTime      time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime        time.Time  `gorm:"not null;index" json:"end_time"`
	Status         ExamStatus `gorm:"size:20;default:'draft';index" json:"status"`
	CreatedBy      uint       `gorm:"not null;index" json:"created_by"`
	MaxAttempts    int        `gorm:"default:1" json:"max_attempts"`
	// OpenAccess selects the assignment policy per exam: open exams admit any
	// active student (an assignment row is written on first start for the
	// audit trail), restricted exams require a prior assignment.
	OpenAccess       bool            `gorm:"default:false" json:"open_access"`
	ShuffleQuestions bool            `gorm:"default:true" json:"shuffle_questions"`
	ShuffleOptions   bool            `gorm:"default:true" json:"shuffle_options"`
	DiffDistribution json.RawMessage `gorm:"column:difficulty_distribution;type:json" json:"difficulty_distribution,omitempty"`
}

func (Exam) TableName() string {
	return "exams"
}

// Distribution decodes the configured difficulty split, if any.
func (e *Exam) Distribution() (*DifficultyDistribution, error) {
	if len(e.DiffDistribution) == 0 {
		return nil, nil
	}
	var d DifficultyDistribution
	if err := json.Unmarshal(e.DiffDistribution, &d); err != nil {
		return nil, err
	}
	if d.Total() == 0 {
		return nil, nil
	}
	return &d, nil
}

// WindowOpen reports whether now falls inside the scheduling window.
func (e *Exam) WindowOpen(now time.Time) bool {
	return !now.Before(e.StartTime) && now.Before(e.EndTime)
}

// NormalizedStatus derives the status the exam should hold at the given
// instant, folding window edges into the lifecycle so a stale stored status
// never wrongly blocks or admits a start.
func (e *Exam) NormalizedStatus(now time.Time) ExamStatus {
	switch e.Status {
	case ExamScheduled, ExamActive:
		if !now.Before(e.EndTime) {
			return ExamCompleted
		}
		if e.Status == ExamScheduled && !now.Before(e.StartTime) {
			return ExamActive
		}
	}
	return e.Status
}
