package model

import (
	"encoding/json"
	"time"
)

type PaperStatus string

const (
	PaperInProgress PaperStatus = "in_progress"
	PaperSubmitted  PaperStatus = "submitted"
	PaperEvaluated  PaperStatus = "evaluated"
)

// PaperQuestion is one entry of the immutable question snapshot captured at
// session start. Grading reads the snapshot, never the live catalog, so
// catalog edits after the start cannot corrupt an attempt in flight.
type PaperQuestion struct {
	QuestionID    uint         `json:"question_id"`
	Seq           int          `json:"seq"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	Options       []Option     `json:"options,omitempty"` // presented order
	Marks         float64      `json:"marks"`
	NegativeMarks float64      `json:"negative_marks"`
	Difficulty    Difficulty   `json:"difficulty"`
	AttachmentKey string       `json:"attachment_key,omitempty"`
	CorrectAnswer string       `json:"correct_answer"` // grading input only, stripped from DTOs
}

// ExamPaper is one student's single attempt at one exam. At most one
// in_progress paper may exist per (exam, student); status only moves forward
// (in_progress -> submitted -> evaluated).
// swagger:model ExamPaper
type ExamPaper struct {
	UUIDBase
	ExamID        uint            `gorm:"not null;uniqueIndex:idx_paper_attempt;index:idx_paper_exam_status" json:"exam_id"`
	StudentID     uint            `gorm:"not null;uniqueIndex:idx_paper_attempt;index" json:"student_id"`
	AttemptNumber int             `gorm:"not null;default:1;uniqueIndex:idx_paper_attempt" json:"attempt_number"`
	Status        PaperStatus     `gorm:"size:20;default:'in_progress';index:idx_paper_exam_status" json:"status"`
	AutoSubmitted bool            `gorm:"default:false" json:"auto_submitted"`
	Questions     json.RawMessage `gorm:"type:json" json:"-"` // JSON: []PaperQuestion
	StartedAt     time.Time       `gorm:"not null" json:"started_at"`
	ExpiresAt     time.Time       `gorm:"not null;index" json:"expires_at"`
	SubmittedAt   *time.Time      `json:"submitted_at,omitempty"`
	LastActivity  time.Time       `gorm:"column:last_activity_at" json:"last_activity_at"`
	ViolationCnt  int             `gorm:"column:violation_count;default:0" json:"violation_count"`
}

func (ExamPaper) TableName() string {
	return "exam_papers"
}

// Closed reports whether the paper no longer accepts answers.
func (p *ExamPaper) Closed() bool {
	return p.Status != PaperInProgress
}

// Expired reports whether the deadline (plus grace) has passed.
func (p *ExamPaper) Expired(now time.Time, grace time.Duration) bool {
	return now.After(p.ExpiresAt.Add(grace))
}

// RemainingSeconds recomputes time left from the server clock.
func (p *ExamPaper) RemainingSeconds(now time.Time) int {
	if p.Closed() {
		return 0
	}
	rem := int(p.ExpiresAt.Sub(now).Seconds())
	if rem < 0 {
		return 0
	}
	return rem
}

// Snapshot decodes the captured question set.
func (p *ExamPaper) Snapshot() ([]PaperQuestion, error) {
	var qs []PaperQuestion
	if err := json.Unmarshal(p.Questions, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// SetSnapshot encodes and stores the question set.
func (p *ExamPaper) SetSnapshot(qs []PaperQuestion) error {
	raw, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	p.Questions = raw
	return nil
}
