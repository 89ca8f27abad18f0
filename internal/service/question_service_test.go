package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/util"

	"gorm.io/gorm"
)

type questionEnv struct {
	db        *gorm.DB
	banks     *QuestionBankService
	questions *QuestionService
	bank      *model.QuestionBank
	owner     *util.Claims
}

func newQuestionEnv(t *testing.T) *questionEnv {
	t.Helper()
	db := newTestDB(t)
	bankRepo := repository.NewQuestionBankRepository(db)

	owner := &util.Claims{UserID: 1, Role: model.Invigilator}
	banks := NewQuestionBankService(bankRepo)
	bank, err := banks.CreateBank("Go Basics", "golang", "", owner.UserID)
	if err != nil {
		t.Fatalf("create bank: %v", err)
	}

	cfg := testConfig()
	cfg.Storage.LocalPath = t.TempDir()
	return &questionEnv{
		db:        db,
		banks:     banks,
		questions: NewQuestionService(repository.NewQuestionRepository(db), bankRepo, NewStorageService(cfg)),
		bank:      bank,
		owner:     owner,
	}
}

func mcqInput() QuestionInput {
	return QuestionInput{
		Type: model.QuestionMCQ,
		Text: "Which keyword starts a goroutine?",
		Options: []model.Option{
			{Key: "A", Text: "go"},
			{Key: "B", Text: "run"},
			{Key: "C", Text: "spawn"},
		},
		CorrectAnswer: "A",
		Marks:         5,
		Difficulty:    model.DifficultyEasy,
	}
}

func TestCreateQuestionNormalizesAnswers(t *testing.T) {
	env := newQuestionEnv(t)

	t.Run("mcq keys", func(t *testing.T) {
		in := mcqInput()
		in.CorrectAnswer = " C , A "
		q, err := env.questions.CreateQuestion(env.bank.ID, in, env.owner)
		if err != nil {
			t.Fatalf("CreateQuestion: %v", err)
		}
		if q.CorrectAnswer != `["c","a"]` {
			t.Errorf("stored answer = %s, want [\"c\",\"a\"]", q.CorrectAnswer)
		}
		opts, err := q.OptionList()
		if err != nil {
			t.Fatalf("OptionList: %v", err)
		}
		if len(opts) != 3 {
			t.Errorf("options = %d, want 3", len(opts))
		}
	})

	t.Run("boolean token", func(t *testing.T) {
		q, err := env.questions.CreateQuestion(env.bank.ID, QuestionInput{
			Type:          model.QuestionTrueFalse,
			Text:          "A nil map can be read from.",
			CorrectAnswer: " TRUE ",
			Marks:         2,
		}, env.owner)
		if err != nil {
			t.Fatalf("CreateQuestion: %v", err)
		}
		if q.CorrectAnswer != "true" {
			t.Errorf("stored answer = %q, want true", q.CorrectAnswer)
		}
		if q.Difficulty != model.DifficultyMedium {
			t.Errorf("difficulty = %s, want default medium", q.Difficulty)
		}
	})

	t.Run("trimmed text", func(t *testing.T) {
		q, err := env.questions.CreateQuestion(env.bank.ID, QuestionInput{
			Type:          model.QuestionFillBlank,
			Text:          "  Goroutines communicate over a ____.  ",
			CorrectAnswer: "  channel  ",
			Marks:         3,
			Difficulty:    model.DifficultyHard,
		}, env.owner)
		if err != nil {
			t.Fatalf("CreateQuestion: %v", err)
		}
		if q.CorrectAnswer != "channel" {
			t.Errorf("stored answer = %q, want channel", q.CorrectAnswer)
		}
		if q.Text != "Goroutines communicate over a ____." {
			t.Errorf("text not trimmed: %q", q.Text)
		}
	})
}

func TestCreateQuestionValidation(t *testing.T) {
	env := newQuestionEnv(t)

	cases := []struct {
		name    string
		mutate  func(*QuestionInput)
		wantErr error
	}{
		{"unknown type", func(in *QuestionInput) { in.Type = "essay" }, util.ErrInvalidInput},
		{"blank text", func(in *QuestionInput) { in.Text = "  " }, util.ErrInvalidInput},
		{"zero marks", func(in *QuestionInput) { in.Marks = 0 }, util.ErrInvalidInput},
		{"negative penalty", func(in *QuestionInput) { in.NegativeMarks = -1 }, util.ErrInvalidInput},
		{"unknown difficulty", func(in *QuestionInput) { in.Difficulty = "brutal" }, util.ErrInvalidInput},
		{"single option", func(in *QuestionInput) { in.Options = in.Options[:1] }, util.ErrInvalidInput},
		{
			"duplicate option keys",
			func(in *QuestionInput) { in.Options[1].Key = "a" },
			util.ErrInvalidInput,
		},
		{"no correct option", func(in *QuestionInput) { in.CorrectAnswer = "" }, util.ErrInvalidInput},
		{"correct key not offered", func(in *QuestionInput) { in.CorrectAnswer = "D" }, util.ErrInvalidInput},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := mcqInput()
			c.mutate(&in)
			_, err := env.questions.CreateQuestion(env.bank.ID, in, env.owner)
			if !errors.Is(err, c.wantErr) {
				t.Errorf("err = %v, want %v", err, c.wantErr)
			}
		})
	}

	t.Run("unknown bank", func(t *testing.T) {
		_, err := env.questions.CreateQuestion(999, mcqInput(), env.owner)
		if !errors.Is(err, util.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("true false needs token", func(t *testing.T) {
		_, err := env.questions.CreateQuestion(env.bank.ID, QuestionInput{
			Type:          model.QuestionTrueFalse,
			Text:          "x",
			CorrectAnswer: "maybe",
			Marks:         1,
		}, env.owner)
		if !errors.Is(err, util.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})
}

func TestBulkImportAtomic(t *testing.T) {
	env := newQuestionEnv(t)

	good := mcqInput()
	bad := mcqInput()
	bad.Marks = 0

	_, err := env.questions.BulkImport(env.bank.ID, []QuestionInput{good, bad}, env.owner)
	if !errors.Is(err, util.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	var n int64
	if err := env.db.Model(&model.Question{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("rejected batch left %d rows", n)
	}

	created, err := env.questions.BulkImport(env.bank.ID, []QuestionInput{good, good, good}, env.owner)
	if err != nil {
		t.Fatalf("BulkImport: %v", err)
	}
	if created != 3 {
		t.Errorf("created = %d, want 3", created)
	}
	if _, err := env.questions.BulkImport(env.bank.ID, nil, env.owner); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("empty batch err = %v, want ErrInvalidInput", err)
	}
}

func TestUpdateQuestionReplacesContent(t *testing.T) {
	env := newQuestionEnv(t)
	q, err := env.questions.CreateQuestion(env.bank.ID, mcqInput(), env.owner)
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	updated, err := env.questions.UpdateQuestion(q.ID, QuestionInput{
		Type:          model.QuestionTrueFalse,
		Text:          "Channels are typed.",
		CorrectAnswer: "true",
		Marks:         2,
		Difficulty:    model.DifficultyEasy,
	}, env.owner)
	if err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	if updated.Type != model.QuestionTrueFalse || updated.CorrectAnswer != "true" {
		t.Errorf("update not applied: %s %q", updated.Type, updated.CorrectAnswer)
	}
	if updated.QuestionBankID != env.bank.ID {
		t.Errorf("bank moved to %d", updated.QuestionBankID)
	}

	if _, err := env.questions.UpdateQuestion(999, mcqInput(), env.owner); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBankLifecycle(t *testing.T) {
	env := newQuestionEnv(t)

	if _, err := env.banks.CreateBank("  ", "golang", "", 1); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("blank name err = %v, want ErrInvalidInput", err)
	}

	if _, err := env.questions.CreateQuestion(env.bank.ID, mcqInput(), env.owner); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	bank, count, err := env.banks.GetBank(env.bank.ID)
	if err != nil {
		t.Fatalf("GetBank: %v", err)
	}
	if count != 1 {
		t.Errorf("question count = %d, want 1", count)
	}
	if bank.Name != "Go Basics" {
		t.Errorf("name = %q", bank.Name)
	}

	renamed, err := env.banks.UpdateBank(env.bank.ID, "Go Core", "", "", env.owner)
	if err != nil {
		t.Fatalf("UpdateBank: %v", err)
	}
	if renamed.Name != "Go Core" || renamed.Subject != "golang" {
		t.Errorf("partial update broke fields: %q %q", renamed.Name, renamed.Subject)
	}
}

func TestAttachFileValidatesContent(t *testing.T) {
	env := newQuestionEnv(t)
	q, err := env.questions.CreateQuestion(env.bank.ID, mcqInput(), env.owner)
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	ctx := context.Background()

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	updated, err := env.questions.AttachFile(ctx, q.ID, "diagram.png", bytes.NewReader(png), int64(len(png)), "", env.owner)
	if err != nil {
		t.Fatalf("AttachFile: %v", err)
	}
	if updated.AttachmentKey == "" {
		t.Fatal("attachment key not stored")
	}

	url, err := env.questions.AttachmentURL(ctx, q.ID)
	if err != nil {
		t.Fatalf("AttachmentURL: %v", err)
	}
	if url == "" {
		t.Error("empty attachment url")
	}

	// A text payload behind an image extension is rejected by the sniff.
	body := strings.NewReader("just text, no picture at all, nothing to see here")
	if _, err := env.questions.AttachFile(ctx, q.ID, "fake.png", body, 48, "image/png", env.owner); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("text payload err = %v, want ErrInvalidInput", err)
	}

	if _, err := env.questions.AttachFile(ctx, q.ID, "tool.exe", bytes.NewReader(png), int64(len(png)), "", env.owner); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("bad extension err = %v, want ErrInvalidInput", err)
	}

	if _, err := env.questions.AttachmentURL(ctx, 999); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("unknown question err = %v, want ErrNotFound", err)
	}
}

func TestBankOwnershipGuards(t *testing.T) {
	env := newQuestionEnv(t)
	q, err := env.questions.CreateQuestion(env.bank.ID, mcqInput(), env.owner)
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	stranger := &util.Claims{UserID: 2, Role: model.Invigilator}
	if _, err := env.questions.CreateQuestion(env.bank.ID, mcqInput(), stranger); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("stranger create err = %v, want ErrPermissionDenied", err)
	}
	if _, err := env.banks.UpdateBank(env.bank.ID, "Hijacked", "", "", stranger); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("stranger rename err = %v, want ErrPermissionDenied", err)
	}
	if err := env.banks.DeleteBank(env.bank.ID, stranger); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("stranger delete bank err = %v, want ErrPermissionDenied", err)
	}
	if err := env.questions.DeleteQuestion(q.ID, stranger); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("stranger delete question err = %v, want ErrPermissionDenied", err)
	}

	// Admins are not bound by bank ownership.
	admin := &util.Claims{UserID: 3, Role: model.Admin}
	if _, err := env.banks.UpdateBank(env.bank.ID, "Curated Go", "", "", admin); err != nil {
		t.Errorf("admin rename: %v", err)
	}
	if err := env.questions.DeleteQuestion(q.ID, admin); err != nil {
		t.Errorf("admin delete question: %v", err)
	}
}

func TestDeleteBankRefusedWhileReferenced(t *testing.T) {
	env := newQuestionEnv(t)
	now := time.Now()

	exam := &model.Exam{
		Title:          "Referencing exam",
		QuestionBankID: env.bank.ID,
		TotalQuestions: 1,
		DurationMin:    30,
		TotalMarks:     5,
		PassingMarks:   2,
		StartTime:      now.Add(time.Hour),
		EndTime:        now.Add(2 * time.Hour),
		Status:         model.ExamDraft,
		CreatedBy:      1,
		MaxAttempts:    1,
	}
	if err := env.db.Create(exam).Error; err != nil {
		t.Fatalf("seed exam: %v", err)
	}

	if err := env.banks.DeleteBank(env.bank.ID, env.owner); !errors.Is(err, util.ErrBankInUse) {
		t.Fatalf("err = %v, want ErrBankInUse", err)
	}

	// A cancelled exam no longer pins the bank.
	if err := env.db.Model(&model.Exam{}).
		Where("id = ?", exam.ID).
		Update("status", model.ExamCancelled).Error; err != nil {
		t.Fatalf("cancel exam: %v", err)
	}
	if err := env.banks.DeleteBank(env.bank.ID, env.owner); err != nil {
		t.Fatalf("DeleteBank: %v", err)
	}
	if _, _, err := env.banks.GetBank(env.bank.ID); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("deleted bank still readable: %v", err)
	}
}
