package service

import (
	"fmt"
	"strings"

	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/util"
)

type QuestionBankService struct {
	BankRepo *repository.QuestionBankRepository
}

func NewQuestionBankService(bankRepo *repository.QuestionBankRepository) *QuestionBankService {
	return &QuestionBankService{BankRepo: bankRepo}
}

func (s *QuestionBankService) CreateBank(name, subject, description string, createdBy uint) (*model.QuestionBank, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: bank name is required", util.ErrInvalidInput)
	}
	bank := &model.QuestionBank{
		Name:        strings.TrimSpace(name),
		Subject:     strings.TrimSpace(subject),
		Description: description,
		CreatedBy:   createdBy,
	}
	if err := s.BankRepo.Create(bank); err != nil {
		return nil, err
	}
	return bank, nil
}

func (s *QuestionBankService) GetBank(id uint) (*model.QuestionBank, int64, error) {
	bank, err := s.BankRepo.FindByID(id)
	if err != nil {
		return nil, 0, util.ErrNotFound
	}
	count, err := s.BankRepo.CountQuestions(id)
	if err != nil {
		return nil, 0, err
	}
	return bank, count, nil
}

func (s *QuestionBankService) GetBanks(subject string, createdBy uint, page, limit int) ([]model.QuestionBank, int64, error) {
	return s.BankRepo.List(subject, createdBy, page, limit)
}

// ownedBank loads the bank and checks the requester may modify it. Banks
// belong to their creator; admins modify any bank.
func (s *QuestionBankService) ownedBank(id uint, requester *util.Claims) (*model.QuestionBank, error) {
	bank, err := s.BankRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrNotFound
	}
	if requester.Role != model.Admin && bank.CreatedBy != requester.UserID {
		return nil, util.ErrPermissionDenied
	}
	return bank, nil
}

func (s *QuestionBankService) UpdateBank(id uint, name, subject, description string, requester *util.Claims) (*model.QuestionBank, error) {
	bank, err := s.ownedBank(id, requester)
	if err != nil {
		return nil, err
	}
	if name != "" {
		bank.Name = strings.TrimSpace(name)
	}
	if subject != "" {
		bank.Subject = strings.TrimSpace(subject)
	}
	if description != "" {
		bank.Description = description
	}
	if err := s.BankRepo.Update(bank); err != nil {
		return nil, err
	}
	return bank, nil
}

// DeleteBank removes the bank and its questions. Refused while any exam that
// is not completed or cancelled still references the bank.
func (s *QuestionBankService) DeleteBank(id uint, requester *util.Claims) error {
	if _, err := s.ownedBank(id, requester); err != nil {
		return err
	}
	refs, err := s.BankRepo.CountLiveExamRefs(id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return util.ErrBankInUse
	}
	return s.BankRepo.Delete(id)
}
