package model

import "encoding/json"

type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionTrueFalse QuestionType = "true_false"
	QuestionFillBlank QuestionType = "fill_blank"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMCQ, QuestionTrueFalse, QuestionFillBlank:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Option is one selectable choice of an mcq question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// swagger:model Question
type Question struct {
	BaseModel
	QuestionBankID uint            `gorm:"not null;index" json:"question_bank_id"`
	Type           QuestionType    `gorm:"size:20;not null" json:"type"`
	Text           string          `gorm:"type:text;not null" json:"text"`
	Options        json.RawMessage `gorm:"type:json" json:"options,omitempty"` // JSON: []Option, mcq only
	// CorrectAnswer holds a JSON array of option keys for mcq, "true"/"false"
	// for true_false, free text for fill_blank. Never serialized to students.
	CorrectAnswer string     `gorm:"type:text;not null" json:"-"`
	Marks         float64    `gorm:"not null" json:"marks"`
	NegativeMarks float64    `gorm:"default:0" json:"negative_marks"`
	Difficulty    Difficulty `gorm:"size:10;default:'medium';index" json:"difficulty"`
	Explanation   string     `gorm:"type:text" json:"-"`
	AttachmentKey string     `gorm:"size:255" json:"-"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionList decodes the stored option set. Nil for non-mcq questions.
func (q *Question) OptionList() ([]Option, error) {
	if len(q.Options) == 0 {
		return nil, nil
	}
	var opts []Option
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}
