package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
)

// ImageUpload is an optional file attached to a multipart request.
type ImageUpload struct {
	File     io.Reader
	Filename string
}

type UserService struct {
	users  repository.UserRepository
	images ImageStore
	log    zerolog.Logger
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	id, err := parseID(userID, ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internal(err)
	}
	return user, nil
}

// UpdateProfile overwrites the editable profile fields and, when image is
// given, replaces the profile picture.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, p models.ProfileUpdate, image *ImageUpload) error {
	id, err := parseID(userID, ErrUserNotFound)
	if err != nil {
		return err
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.Name == "" || p.Phone == "" || p.DOB == "" || p.Gender == "" {
		return validation("Data Missing")
	}

	if err := s.users.UpdateProfile(ctx, id, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return internal(err)
	}

	if image != nil {
		url, err := s.images.UploadImage(ctx, image.File, image.Filename)
		if err != nil {
			return upstream("Image upload failed", err)
		}
		if err := s.users.SetImage(ctx, id, url); err != nil {
			return internal(err)
		}
	}
	s.log.Info().Str("user_id", userID).Msg("Profile updated")
	return nil
}
