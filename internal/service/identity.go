package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"greengen/internal/model"
	"greengen/internal/repository"
)

// IdentityService manages user accounts. Duplicate pseudos and emails
// are rejected by the storage constraints, never by a pre-check.
type IdentityService struct {
	userRepo repository.UserRepository
}

func NewIdentityService(userRepo repository.UserRepository) *IdentityService {
	return &IdentityService{userRepo: userRepo}
}

// Register hashes the raw credentials and creates the account. The
// email never reaches storage in the clear.
func (s *IdentityService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	if strings.TrimSpace(req.Pseudo) == "" {
		return nil, fmt.Errorf("pseudo is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, fmt.Errorf("email is required")
	}
	if req.Password == "" {
		return nil, fmt.Errorf("password is required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.CreateUser(ctx, req.Pseudo, HashEmail(req.Email), string(passwordHash), req.Intro)
}

// CreateUser inserts the account row. Both uniqueness constraints are
// checked by the same single-row insert, so a pseudo can never be
// reserved without the email (or the reverse).
func (s *IdentityService) CreateUser(ctx context.Context, pseudo, emailHash, passwordHash string, intro *string) (*model.User, error) {
	user := &model.User{
		UserID:       uuid.NewString(),
		EmailHash:    emailHash,
		PasswordHash: passwordHash,
		Pseudo:       pseudo,
		Intro:        intro,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		log.Printf("[IdentityService] CreateUser FAILED: pseudo=%s err=%v", pseudo, err)
		return nil, err
	}

	log.Printf("[IdentityService] CreateUser OK: userID=%s pseudo=%s", user.UserID, user.Pseudo)
	return user, nil
}

// GetByID returns the user or model.ErrUserNotFound.
func (s *IdentityService) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// GetByPseudo returns the user or model.ErrUserNotFound.
func (s *IdentityService) GetByPseudo(ctx context.Context, pseudo string) (*model.User, error) {
	return s.userRepo.GetByPseudo(ctx, pseudo)
}

// DisableUser soft-disables the account. The row and its content stay;
// nothing is deleted.
func (s *IdentityService) DisableUser(ctx context.Context, userID string) error {
	if err := s.userRepo.SetEnabled(ctx, userID, false); err != nil {
		return err
	}
	log.Printf("[IdentityService] DisableUser OK: userID=%s", userID)
	return nil
}

// EnableUser re-enables a previously disabled account.
func (s *IdentityService) EnableUser(ctx context.Context, userID string) error {
	if err := s.userRepo.SetEnabled(ctx, userID, true); err != nil {
		return err
	}
	log.Printf("[IdentityService] EnableUser OK: userID=%s", userID)
	return nil
}

// HashEmail normalizes and hashes an email address for storage and
// lookup. Case and surrounding whitespace do not produce distinct
// accounts.
func HashEmail(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
