package model

import "time"

// ExamAssignment grants one student eligibility for one restricted exam.
// No soft delete: a removed assignment must vacate the unique index so the
// student can be re-assigned.
// swagger:model ExamAssignment
type ExamAssignment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExamID    uint      `gorm:"not null;uniqueIndex:idx_exam_student" json:"exam_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_exam_student;index" json:"student_id"`
	// AssignedBy is zero when the row was auto-created on first start of an
	// open-access exam.
	AssignedBy uint `json:"assigned_by,omitempty"`
}

func (ExamAssignment) TableName() string {
	return "exam_assignments"
}
