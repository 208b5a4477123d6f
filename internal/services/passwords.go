package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
	"github.com/harentsoaR/prescripto-api/internal/utils"
)

const (
	OTPTTL        = 10 * time.Minute
	ResetTokenTTL = 15 * time.Minute
)

var (
	ErrOTPRequired       = validation("OTP is required")
	ErrOTPExpired        = validation("OTP expired")
	ErrInvalidOTP        = validation("Invalid OTP")
	ErrInvalidResetToken = unauthorized("Invalid or expired reset token")
)

type PasswordService struct {
	users    repository.UserRepository
	doctors  repository.DoctorRepository
	tokens   repository.ResetTokenStore
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func (s *PasswordService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, validation("Email is required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internal(err)
	}
	return user, nil
}

// RequestReset stores a fresh one-time code on the account and emails it.
func (s *PasswordService) RequestReset(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	otp, err := utils.GenerateOTP()
	if err != nil {
		return internal(err)
	}
	if err := s.users.SetOTP(ctx, user.ID, otp, s.now().Add(OTPTTL)); err != nil {
		return internal(err)
	}

	s.notifier.Notify(ctx, models.KindPasswordOTP, user.Email, map[string]string{
		"otp":       otp,
		"expiresIn": "10 minutes",
	})
	s.log.Info().Str("user_id", user.ID.Hex()).Msg("Password reset code issued")
	return nil
}

// VerifyOTP consumes the stored code and returns a short-lived token that
// authorizes one password reset for the same email.
func (s *PasswordService) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	if otp == "" {
		return "", ErrOTPRequired
	}
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user.VerifyOTP == "" || user.OTPExpiry == nil {
		return "", ErrInvalidOTP
	}
	if !s.now().Before(*user.OTPExpiry) {
		return "", ErrOTPExpired
	}
	if user.VerifyOTP != otp {
		return "", ErrInvalidOTP
	}

	// Conditional clear: a concurrent verify of the same code loses here.
	if err := s.users.ClearOTP(ctx, user.ID, otp); err != nil {
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidOTP
		}
		return "", internal(err)
	}

	token, err := s.tokens.Issue(ctx, user.Email, ResetTokenTTL)
	if err != nil {
		return "", internal(err)
	}
	return token, nil
}

// Reset sets a new password using a token issued by VerifyOTP.
func (s *PasswordService) Reset(ctx context.Context, email, password, resetToken string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if len(password) < utils.MinPasswordLength {
		return ErrWeakPassword
	}
	if resetToken == "" {
		return ErrInvalidResetToken
	}

	bound, err := s.tokens.Consume(ctx, resetToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return internal(err)
	}
	if bound != user.Email {
		return ErrInvalidResetToken
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return internal(err)
	}
	if err := s.users.SetPassword(ctx, user.ID, hash); err != nil {
		return internal(err)
	}
	s.log.Info().Str("user_id", user.ID.Hex()).Msg("Password reset")
	return nil
}

// ChangeUserPassword replaces a patient's password after checking the current one.
func (s *PasswordService) ChangeUserPassword(ctx context.Context, userID, current, next string) error {
	id, err := parseID(userID, ErrUserNotFound)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return internal(err)
	}
	hash, err := checkPasswordChange(user.Password, current, next)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, id, hash); err != nil {
		return internal(err)
	}
	s.notifier.Notify(ctx, models.KindPasswordChanged, user.Email, map[string]string{"name": user.Name})
	return nil
}

// ChangeDoctorPassword replaces a doctor's password after checking the current one.
func (s *PasswordService) ChangeDoctorPassword(ctx context.Context, doctorID, current, next string) error {
	id, err := parseID(doctorID, ErrDoctorNotFound)
	if err != nil {
		return err
	}
	doctor, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDoctorNotFound
		}
		return internal(err)
	}
	hash, err := checkPasswordChange(doctor.Password, current, next)
	if err != nil {
		return err
	}
	if err := s.doctors.SetPassword(ctx, id, hash); err != nil {
		return internal(err)
	}
	s.notifier.Notify(ctx, models.KindPasswordChanged, doctor.Email, map[string]string{"name": "Dr. " + doctor.Name})
	return nil
}

// checkPasswordChange validates a change request and returns the new hash.
func checkPasswordChange(storedHash, current, next string) (string, error) {
	if current == "" {
		return "", validation("Current password is required")
	}
	if next == "" {
		return "", validation("New password is required")
	}
	if !utils.CheckPasswordHash(current, storedHash) {
		return "", validation("Current password is incorrect")
	}
	if next == current {
		return "", validation("New password cannot be the same as the current password")
	}
	if len(next) < utils.MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return "", internal(err)
	}
	return hash, nil
}
