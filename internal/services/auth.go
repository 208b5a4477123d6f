package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
	"github.com/harentsoaR/prescripto-api/internal/utils"
)

// AuthService registers patients and issues tokens for all three roles.
type AuthService struct {
	users    repository.UserRepository
	doctors  repository.DoctorRepository
	jwt      *utils.JWTManager
	notifier Notifier
	admin    AdminCredentials
	appURL   string
	log      zerolog.Logger
}

// Register creates a patient account and returns its token.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (string, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return "", validation("All fields are required")
	}
	if !utils.IsEmail(email) {
		return "", validation("Invalid email")
	}
	if len(password) < utils.MinPasswordLength {
		return "", ErrWeakPassword
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return "", conflict("User already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", internal(err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return "", internal(err)
	}
	user := models.NewUser(name, email, hash)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", conflict("User already exists")
		}
		return "", internal(err)
	}

	token, err := s.jwt.GenerateJWT(user.ID.Hex(), utils.RoleUser)
	if err != nil {
		return "", internal(err)
	}

	s.notifier.Notify(ctx, models.KindWelcomeUser, user.Email, map[string]string{
		"name":   user.Name,
		"appUrl": s.appURL,
	})
	s.log.Info().Str("user_id", user.ID.Hex()).Msg("Patient registered")
	return token, nil
}

func (s *AuthService) LoginUser(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", internal(err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return "", ErrInvalidCredentials
	}
	token, err := s.jwt.GenerateJWT(user.ID.Hex(), utils.RoleUser)
	if err != nil {
		return "", internal(err)
	}
	return token, nil
}

func (s *AuthService) LoginDoctor(ctx context.Context, email, password string) (string, error) {
	doctor, err := s.doctors.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", internal(err)
	}
	if !utils.CheckPasswordHash(password, doctor.Password) {
		return "", ErrInvalidCredentials
	}
	token, err := s.jwt.GenerateJWT(doctor.ID.Hex(), utils.RoleDoctor)
	if err != nil {
		return "", internal(err)
	}
	return token, nil
}

// LoginAdmin checks the configured administrator credentials and issues an
// admin-role token.
func (s *AuthService) LoginAdmin(email, password string) (string, error) {
	if s.admin.Email == "" || s.admin.Password == "" {
		return "", ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(normalizeEmail(email)), []byte(normalizeEmail(s.admin.Email))) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
	if !emailOK || !passOK {
		return "", ErrInvalidCredentials
	}
	token, err := s.jwt.GenerateJWT(s.admin.Email, utils.RoleAdmin)
	if err != nil {
		return "", internal(err)
	}
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
