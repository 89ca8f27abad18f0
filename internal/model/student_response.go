package model

import "time"

// StudentResponse is one (paper, question) answer slot. Rows are pre-created
// for every snapshot question at session start with a NULL answer, so saving
// an answer is always an update of an existing row (an unknown question id
// simply has no row). Writable only while the paper is in_progress.
// swagger:model StudentResponse
type StudentResponse struct {
	BaseModel
	PaperID    string `gorm:"type:varchar(36);not null;uniqueIndex:idx_paper_question" json:"paper_id"`
	QuestionID uint   `gorm:"not null;uniqueIndex:idx_paper_question" json:"question_id"`
	// Answer is the raw submitted payload: a JSON array of option keys for
	// mcq, "true"/"false" for true_false, free text for fill_blank. Nil means
	// unattempted.
	Answer       *string    `gorm:"type:text" json:"answer,omitempty"`
	MarkedReview bool       `gorm:"column:is_marked_for_review;default:false" json:"is_marked_for_review"`
	AnsweredAt   *time.Time `json:"answered_at,omitempty"`

	// Grading outputs, filled at evaluation.
	IsCorrect    *bool   `json:"is_correct,omitempty"`
	MarksAwarded float64 `gorm:"default:0" json:"marks_awarded"`
}

func (StudentResponse) TableName() string {
	return "student_responses"
}

// Attempted reports whether a non-empty answer was saved.
func (r *StudentResponse) Attempted() bool {
	return r.Answer != nil && *r.Answer != ""
}
