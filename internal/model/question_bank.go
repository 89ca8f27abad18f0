package model

// swagger:model QuestionBank
type QuestionBank struct {
	BaseModel
	Name        string `gorm:"size:200;not null" json:"name"`
	Subject     string `gorm:"size:100;not null;index" json:"subject"`
	Description string `gorm:"type:text" json:"description"`
	CreatedBy   uint   `gorm:"not null;index" json:"created_by"`

	Questions []Question `gorm:"foreignKey:QuestionBankID" json:"-"`
}

func (QuestionBank) TableName() string {
	return "question_banks"
}
