package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"exam_platform_backend/internal/grading"
	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/util"
)

// QuestionInput carries the writable fields of a question.
type QuestionInput struct {
	Type          model.QuestionType `json:"type"`
	Text          string             `json:"text"`
	Options       []model.Option     `json:"options,omitempty"`
	CorrectAnswer string             `json:"correct_answer"`
	Marks         float64            `json:"marks"`
	NegativeMarks float64            `json:"negative_marks"`
	Difficulty    model.Difficulty   `json:"difficulty"`
	Explanation   string             `json:"explanation,omitempty"`
}

type QuestionService struct {
	QuestionRepo *repository.QuestionRepository
	BankRepo     *repository.QuestionBankRepository
	Storage      *StorageService
}

func NewQuestionService(questionRepo *repository.QuestionRepository, bankRepo *repository.QuestionBankRepository, storage *StorageService) *QuestionService {
	return &QuestionService{
		QuestionRepo: questionRepo,
		BankRepo:     bankRepo,
		Storage:      storage,
	}
}

// editableBank checks the requester may modify the bank's content. Bank
// content belongs to the bank's creator; admins edit any bank.
func (s *QuestionService) editableBank(bankID uint, requester *util.Claims) error {
	bank, err := s.BankRepo.FindByID(bankID)
	if err != nil {
		return util.ErrNotFound
	}
	if requester.Role != model.Admin && bank.CreatedBy != requester.UserID {
		return util.ErrPermissionDenied
	}
	return nil
}

func (s *QuestionService) CreateQuestion(bankID uint, in QuestionInput, requester *util.Claims) (*model.Question, error) {
	if err := s.editableBank(bankID, requester); err != nil {
		return nil, err
	}
	question, err := buildQuestion(bankID, in)
	if err != nil {
		return nil, err
	}
	if err := s.QuestionRepo.Create(question); err != nil {
		return nil, err
	}
	return question, nil
}

// BulkImport validates every row first and creates all of them in one
// transaction, so a bad row rejects the whole batch.
func (s *QuestionService) BulkImport(bankID uint, inputs []QuestionInput, requester *util.Claims) (int, error) {
	if err := s.editableBank(bankID, requester); err != nil {
		return 0, err
	}
	if len(inputs) == 0 {
		return 0, fmt.Errorf("%w: empty import batch", util.ErrInvalidInput)
	}

	questions := make([]*model.Question, 0, len(inputs))
	for i, in := range inputs {
		question, err := buildQuestion(bankID, in)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
		questions = append(questions, question)
	}
	if err := s.QuestionRepo.CreateBatch(questions); err != nil {
		return 0, err
	}
	return len(questions), nil
}

func (s *QuestionService) GetQuestion(id uint) (*model.Question, error) {
	question, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrNotFound
	}
	return question, nil
}

func (s *QuestionService) GetQuestions(bankID uint, difficulty model.Difficulty, page, limit int) ([]model.Question, int64, error) {
	if _, err := s.BankRepo.FindByID(bankID); err != nil {
		return nil, 0, util.ErrNotFound
	}
	return s.QuestionRepo.ListByBank(bankID, difficulty, page, limit)
}

// UpdateQuestion replaces the question's content. Papers already started keep
// grading against their captured snapshot.
func (s *QuestionService) UpdateQuestion(id uint, in QuestionInput, requester *util.Claims) (*model.Question, error) {
	question, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrNotFound
	}
	if err := s.editableBank(question.QuestionBankID, requester); err != nil {
		return nil, err
	}
	updated, err := buildQuestion(question.QuestionBankID, in)
	if err != nil {
		return nil, err
	}

	question.Type = updated.Type
	question.Text = updated.Text
	question.Options = updated.Options
	question.CorrectAnswer = updated.CorrectAnswer
	question.Marks = updated.Marks
	question.NegativeMarks = updated.NegativeMarks
	question.Difficulty = updated.Difficulty
	question.Explanation = updated.Explanation
	if err := s.QuestionRepo.Update(question); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuestionService) DeleteQuestion(id uint, requester *util.Claims) error {
	question, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		return util.ErrNotFound
	}
	if err := s.editableBank(question.QuestionBankID, requester); err != nil {
		return err
	}
	if question.AttachmentKey != "" {
		_ = s.Storage.Delete(context.Background(), question.AttachmentKey)
	}
	return s.QuestionRepo.Delete(id)
}

// AttachFile stores an illustration for the question and replaces any
// previous one.
func (s *QuestionService) AttachFile(ctx context.Context, id uint, filename string, reader io.Reader, size int64, contentType string, requester *util.Claims) (*model.Question, error) {
	question, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrNotFound
	}
	if err := s.editableBank(question.QuestionBankID, requester); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !util.AllowedImageExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported attachment type %s", util.ErrInvalidInput, ext)
	}
	if size > util.MaxAttachmentSize {
		return nil, fmt.Errorf("%w: attachment exceeds %d bytes", util.ErrInvalidInput, util.MaxAttachmentSize)
	}

	// The extension is client-controlled; the first bytes are not.
	sniffed, replay, err := util.SniffMimeType(reader, util.MimeImage)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = sniffed
	}

	key := fmt.Sprintf("questions/%d/%s%s", id, model.GenerateUUID(), ext)
	if _, err := s.Storage.Upload(ctx, key, replay, size, contentType); err != nil {
		return nil, err
	}

	if question.AttachmentKey != "" {
		_ = s.Storage.Delete(ctx, question.AttachmentKey)
	}
	question.AttachmentKey = key
	if err := s.QuestionRepo.Update(question); err != nil {
		return nil, err
	}
	return question, nil
}

// AttachmentURL returns a short-lived download link for the question's
// illustration.
func (s *QuestionService) AttachmentURL(ctx context.Context, id uint) (string, error) {
	question, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		return "", util.ErrNotFound
	}
	if question.AttachmentKey == "" {
		return "", util.ErrNotFound
	}
	return s.Storage.PresignedURL(ctx, question.AttachmentKey, 15*time.Minute)
}

// buildQuestion validates the input and normalizes the stored correct answer:
// mcq answers become a canonical JSON key array, boolean answers "true" or
// "false", text answers keep their surrounding text trimmed.
func buildQuestion(bankID uint, in QuestionInput) (*model.Question, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown question type %q", util.ErrInvalidInput, in.Type)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: question text is required", util.ErrInvalidInput)
	}
	if in.Marks <= 0 {
		return nil, fmt.Errorf("%w: marks must be positive", util.ErrInvalidInput)
	}
	if in.NegativeMarks < 0 {
		return nil, fmt.Errorf("%w: negative marks cannot be below zero", util.ErrInvalidInput)
	}
	if in.Difficulty == "" {
		in.Difficulty = model.DifficultyMedium
	}
	if !in.Difficulty.Valid() {
		return nil, fmt.Errorf("%w: unknown difficulty %q", util.ErrInvalidInput, in.Difficulty)
	}

	question := &model.Question{
		QuestionBankID: bankID,
		Type:           in.Type,
		Text:           strings.TrimSpace(in.Text),
		Marks:          in.Marks,
		NegativeMarks:  in.NegativeMarks,
		Difficulty:     in.Difficulty,
		Explanation:    in.Explanation,
	}

	switch in.Type {
	case model.QuestionMCQ:
		if len(in.Options) < 2 {
			return nil, fmt.Errorf("%w: mcq question needs at least two options", util.ErrInvalidInput)
		}
		optionKeys := make(map[string]struct{}, len(in.Options))
		for _, opt := range in.Options {
			key := strings.ToLower(strings.TrimSpace(opt.Key))
			if key == "" {
				return nil, fmt.Errorf("%w: option key is required", util.ErrInvalidInput)
			}
			if _, dup := optionKeys[key]; dup {
				return nil, fmt.Errorf("%w: duplicate option key %q", util.ErrInvalidInput, key)
			}
			optionKeys[key] = struct{}{}
		}

		correct := grading.AnswerKeys(in.CorrectAnswer)
		if len(correct) == 0 {
			return nil, fmt.Errorf("%w: mcq question needs at least one correct option", util.ErrInvalidInput)
		}
		for _, key := range correct {
			if _, ok := optionKeys[key]; !ok {
				return nil, fmt.Errorf("%w: correct option %q is not among the options", util.ErrInvalidInput, key)
			}
		}

		rawOptions, err := json.Marshal(in.Options)
		if err != nil {
			return nil, err
		}
		rawCorrect, err := json.Marshal(correct)
		if err != nil {
			return nil, err
		}
		question.Options = rawOptions
		question.CorrectAnswer = string(rawCorrect)

	case model.QuestionTrueFalse:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(in.CorrectAnswer)))
		if err != nil {
			return nil, fmt.Errorf("%w: correct answer must be true or false", util.ErrInvalidInput)
		}
		question.CorrectAnswer = strconv.FormatBool(b)

	case model.QuestionFillBlank:
		answer := strings.TrimSpace(in.CorrectAnswer)
		if answer == "" {
			return nil, fmt.Errorf("%w: correct answer is required", util.ErrInvalidInput)
		}
		question.CorrectAnswer = answer
	}

	return question, nil
}
