package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exam_platform_backend/internal/config"
	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/util"
	"exam_platform_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// userSnapshot is the cached slice of a user record the request guard needs.
type userSnapshot struct {
	ID       uint           `json:"id"`
	Role     model.UserRole `json:"role"`
	IsActive bool           `json:"is_active"`
}

// UserService handles account management. Reads that gate every request go
// through a short-lived Redis snapshot so deactivation and role changes
// propagate within the cache TTL instead of the token lifetime.
type UserService struct {
	UserRepo *repository.UserRepository
	Redis    *redis.Client
	Cfg      *config.Config
}

func NewUserService(userRepo *repository.UserRepository, rdb *redis.Client, cfg *config.Config) *UserService {
	return &UserService{
		UserRepo: userRepo,
		Redis:    rdb,
		Cfg:      cfg,
	}
}

func userCacheKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

// ActiveUser resolves the current state of an authenticated user, preferring
// the cache. The returned value carries only identity fields, never the
// password hash.
func (s *UserService) ActiveUser(id uint) (*model.User, error) {
	if s.Redis != nil {
		ctx := context.Background()
		if raw, err := s.Redis.Get(ctx, userCacheKey(id)).Result(); err == nil {
			var snap userSnapshot
			if json.Unmarshal([]byte(raw), &snap) == nil {
				user := &model.User{Role: snap.Role, IsActive: snap.IsActive}
				user.ID = snap.ID
				return user, nil
			}
		}
	}

	user, err := s.UserRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrUserNotFound
	}
	s.cacheSnapshot(user)
	return user, nil
}

func (s *UserService) cacheSnapshot(user *model.User) {
	if s.Redis == nil {
		return
	}
	snap := userSnapshot{ID: user.ID, Role: user.Role, IsActive: user.IsActive}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	ttl := s.Cfg.Auth.UserCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.Redis.Set(context.Background(), userCacheKey(user.ID), raw, ttl).Err(); err != nil {
		logger.Log.Warn("user snapshot cache write failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}
}

// InvalidateCache drops the cached snapshot so the next request re-reads the
// database.
func (s *UserService) InvalidateCache(id uint) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(context.Background(), userCacheKey(id)).Err(); err != nil {
		logger.Log.Warn("user snapshot cache invalidation failed", zap.Uint("user_id", id), zap.Error(err))
	}
}

func (s *UserService) GetUserByID(id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) GetUsers(role model.UserRole, page, limit int) ([]model.User, int64, error) {
	return s.UserRepo.List(role, page, limit)
}

// CreateUser lets an admin provision accounts of any role.
func (s *UserService) CreateUser(email, password, fullName string, role model.UserRole) (*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", util.ErrInvalidInput, role)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:        email,
		PasswordHash: string(hashed),
		FullName:     fullName,
		Role:         role,
		IsActive:     true,
	}
	if err := s.UserRepo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}
	return user, nil
}

// UpdateUser changes profile fields and, when requested, the role. Untouched
// fields keep their stored values.
func (s *UserService) UpdateUser(id uint, fullName string, role model.UserRole) (*model.User, error) {
	user, err := s.UserRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrUserNotFound
	}

	if fullName != "" {
		user.FullName = fullName
	}
	if role != "" {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", util.ErrInvalidInput, role)
		}
		user.Role = role
	}
	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	s.InvalidateCache(id)
	return user, nil
}

// SetActive deactivates or reinstates an account. Deactivation locks the user
// out as soon as the snapshot cache expires.
func (s *UserService) SetActive(id uint, active bool) error {
	if _, err := s.UserRepo.FindByID(id); err != nil {
		return util.ErrUserNotFound
	}
	if err := s.UserRepo.SetActive(id, active); err != nil {
		return err
	}
	s.InvalidateCache(id)
	return nil
}
