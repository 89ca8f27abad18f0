package service

import (
	"errors"
	"testing"

	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/util"
)

func newAuthEnv(t *testing.T) (*AuthService, *UserService) {
	t.Helper()
	db := newTestDB(t)
	cfg := testConfig()
	userRepo := repository.NewUserRepository(db)
	users := NewUserService(userRepo, nil, cfg)
	return NewAuthService(userRepo, users, cfg), users
}

func TestRegisterAndLogin(t *testing.T) {
	auth, _ := newAuthEnv(t)

	user, err := auth.Register("ada@exam.test", "correct horse", "Ada", model.Student)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != model.Student || !user.IsActive {
		t.Errorf("user = %+v, want active student", user)
	}
	if user.PasswordHash == "correct horse" {
		t.Fatal("password stored in the clear")
	}

	if _, err := auth.Register("ada@exam.test", "other", "Ada II", model.Student); !errors.Is(err, util.ErrEmailRegistered) {
		t.Errorf("duplicate register err = %v, want ErrEmailRegistered", err)
	}

	token, logged, err := auth.Login("ada@exam.test", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID {
		t.Errorf("logged in as %d, want %d", logged.ID, user.ID)
	}

	claims, err := util.ParseJWT(token, testConfig().JWT.Secret)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != model.Student || claims.Email != "ada@exam.test" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth, users := newAuthEnv(t)
	user, err := auth.Register("ada@exam.test", "correct horse", "Ada", model.Student)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Unknown email and wrong password answer alike.
	if _, _, err := auth.Login("nobody@exam.test", "correct horse"); !errors.Is(err, util.ErrInvalidLogin) {
		t.Errorf("unknown email err = %v, want ErrInvalidLogin", err)
	}
	if _, _, err := auth.Login("ada@exam.test", "wrong horse"); !errors.Is(err, util.ErrInvalidLogin) {
		t.Errorf("wrong password err = %v, want ErrInvalidLogin", err)
	}

	if err := users.SetActive(user.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, _, err := auth.Login("ada@exam.test", "correct horse"); !errors.Is(err, util.ErrAccountDisabled) {
		t.Errorf("disabled err = %v, want ErrAccountDisabled", err)
	}
}

func TestChangePassword(t *testing.T) {
	auth, _ := newAuthEnv(t)
	user, err := auth.Register("ada@exam.test", "old password", "Ada", model.Student)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := auth.ChangePassword(user.ID, "not the old one", "new password"); !errors.Is(err, util.ErrInvalidLogin) {
		t.Errorf("wrong old password err = %v, want ErrInvalidLogin", err)
	}
	if err := auth.ChangePassword(user.ID, "old password", "new password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, _, err := auth.Login("ada@exam.test", "old password"); !errors.Is(err, util.ErrInvalidLogin) {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, _, err := auth.Login("ada@exam.test", "new password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestAdminUserManagement(t *testing.T) {
	_, users := newAuthEnv(t)

	if _, err := users.CreateUser("x@exam.test", "pw", "X", "superuser"); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("bad role err = %v, want ErrInvalidInput", err)
	}

	staff, err := users.CreateUser("staff@exam.test", "password", "Staff", model.Invigilator)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if staff.Role != model.Invigilator {
		t.Errorf("role = %s, want %s", staff.Role, model.Invigilator)
	}

	promoted, err := users.UpdateUser(staff.ID, "", model.Admin)
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if promoted.Role != model.Admin || promoted.FullName != "Staff" {
		t.Errorf("promotion = %+v, want admin keeping name", promoted)
	}

	// Without a cache every ActiveUser read hits the database directly.
	current, err := users.ActiveUser(staff.ID)
	if err != nil {
		t.Fatalf("ActiveUser: %v", err)
	}
	if current.Role != model.Admin {
		t.Errorf("active role = %s, want %s", current.Role, model.Admin)
	}

	if err := users.SetActive(staff.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	current, err = users.ActiveUser(staff.ID)
	if err != nil {
		t.Fatalf("ActiveUser: %v", err)
	}
	if current.IsActive {
		t.Error("deactivation not visible")
	}

	if err := users.SetActive(999, false); !errors.Is(err, util.ErrUserNotFound) {
		t.Errorf("unknown user err = %v, want ErrUserNotFound", err)
	}
}
