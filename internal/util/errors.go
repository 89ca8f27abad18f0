package util

import "errors"

// Eligibility errors: the caller may recover by choosing a different action.
var (
	ErrIneligible         = errors.New("student is not assigned to this exam")
	ErrOutsideWindow      = errors.New("current time is outside the exam window")
	ErrExamNotActive      = errors.New("exam is not active")
	ErrDuplicateSession   = errors.New("an in-progress session already exists for this exam")
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")
)

// State errors: the client holds a stale view and should resynchronize.
var (
	ErrSessionClosed    = errors.New("session no longer accepts answers")
	ErrUnknownQuestion  = errors.New("question does not belong to this session")
	ErrAlreadySubmitted = errors.New("session already submitted")
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("resource not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailRegistered   = errors.New("email already registered")
	ErrInvalidLogin      = errors.New("invalid email or password")
	ErrAccountDisabled   = errors.New("account is disabled")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrBankInUse         = errors.New("question bank is referenced by an exam that is not completed")
	ErrBankTooSmall      = errors.New("question bank does not hold enough questions")
	ErrInvalidTransition = errors.New("invalid exam status transition")
)
