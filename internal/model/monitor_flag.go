package model

type FlagSeverity string

const (
	FlagInfo     FlagSeverity = "info"
	FlagWarning  FlagSeverity = "warning"
	FlagCritical FlagSeverity = "critical"
)

func (s FlagSeverity) Valid() bool {
	switch s {
	case FlagInfo, FlagWarning, FlagCritical:
		return true
	}
	return false
}

// MonitorFlag records an irregularity during an exam, raised manually by an
// invigilator or automatically from a client violation report. Flags never
// alter grading by themselves.
// swagger:model MonitorFlag
type MonitorFlag struct {
	BaseModel
	ExamID    uint         `gorm:"not null;index" json:"exam_id"`
	StudentID uint         `gorm:"not null;index" json:"student_id"`
	PaperID   string       `gorm:"type:varchar(36)" json:"paper_id,omitempty"`
	// FlaggedBy is nil for automatic flags.
	FlaggedBy *uint        `json:"flagged_by,omitempty"`
	Reason    string       `gorm:"size:500;not null" json:"reason"`
	Severity  FlagSeverity `gorm:"size:20;default:'warning'" json:"severity"`
}

func (MonitorFlag) TableName() string {
	return "monitor_flags"
}
