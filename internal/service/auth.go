package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/logger"
	"golang.org/x/crypto/bcrypt"

	"secret_santa/internal/models"
	"secret_santa/internal/repository"
)

type AuthService struct {
	participantRepo repository.ParticipantRepository
	// adminHash 是 auth.admin_secret 的 bcrypt 雜湊，nil 代表停用管理介面
	adminHash []byte
}

func NewAuthService(participantRepo repository.ParticipantRepository, adminSecret string) (*AuthService, error) {
	s := &AuthService{participantRepo: participantRepo}
	if adminSecret == "" {
		logger.Warning("auth.admin_secret is empty, admin access is disabled")
		return s, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin secret: %w", err)
	}
	s.adminHash = hash
	return s, nil
}

// IsAdmin 判斷輸入的密碼是否為管理員密碼
func (s *AuthService) IsAdmin(secret string) bool {
	if s.adminHash == nil || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(s.adminHash, []byte(secret)) == nil
}

// Login 以密碼找出對應的參與者
func (s *AuthService) Login(ctx context.Context, secret string) (*models.Participant, error) {
	if secret == "" {
		return nil, ErrInvalidCredentials
	}
	p, err := s.participantRepo.FindBySecret(ctx, secret)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeError("login", err)
	}
	return p, nil
}
