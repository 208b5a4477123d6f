package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
	"github.com/harentsoaR/prescripto-api/internal/utils"
)

// NewDoctor is the admin form for registering a doctor.
type NewDoctor struct {
	Name       string
	Email      string
	Password   string
	Speciality string
	Degree     string
	Experience string
	About      string
	Fees       float64
	Address    models.Address
}

type DoctorService struct {
	doctors  repository.DoctorRepository
	images   ImageStore
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// Create registers a doctor. The image is required and is uploaded before the
// record is written.
func (s *DoctorService) Create(ctx context.Context, in NewDoctor, image *ImageUpload) (*models.Doctor, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Speciality == "" ||
		in.Degree == "" || in.Experience == "" || in.About == "" || in.Fees <= 0 ||
		in.Address.Line1 == "" {
		return nil, validation("Missing Details")
	}
	if !utils.IsEmail(in.Email) {
		return nil, validation("Please enter a valid email")
	}
	if len(in.Password) < utils.MinPasswordLength {
		return nil, validation("Please enter a strong password")
	}
	if image == nil || image.File == nil {
		return nil, validation("Image is required")
	}

	if _, err := s.doctors.GetByEmail(ctx, in.Email); err == nil {
		return nil, conflict("Doctor already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, internal(err)
	}

	imageURL, err := s.images.UploadImage(ctx, image.File, image.Filename)
	if err != nil {
		return nil, upstream("Image upload failed", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, internal(err)
	}

	doctor := &models.Doctor{
		ID:          primitive.NewObjectID(),
		Name:        in.Name,
		Email:       in.Email,
		Password:    hash,
		Image:       imageURL,
		Speciality:  in.Speciality,
		Degree:      in.Degree,
		Experience:  in.Experience,
		About:       in.About,
		Available:   true,
		Fees:        in.Fees,
		Address:     in.Address,
		Date:        nowMillis(s.now()),
		SlotsBooked: models.SlotMap{},
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("Doctor already exists")
		}
		return nil, internal(err)
	}

	s.notifier.Notify(ctx, models.KindWelcomeDoctor, doctor.Email, map[string]string{
		"name":       doctor.Name,
		"email":      doctor.Email,
		"speciality": doctor.Speciality,
	})
	s.log.Info().Str("doctor_id", doctor.ID.Hex()).Msg("Doctor added")
	return doctor, nil
}

// List returns every doctor. Patient-facing callers pass withEmail=false.
func (s *DoctorService) List(ctx context.Context, withEmail bool) ([]models.Doctor, error) {
	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return nil, internal(err)
	}
	if !withEmail {
		for i := range doctors {
			doctors[i] = doctors[i].PublicView()
		}
	}
	return doctors, nil
}

func (s *DoctorService) ToggleAvailability(ctx context.Context, doctorID string) error {
	id, err := parseID(doctorID, ErrDoctorNotFound)
	if err != nil {
		return err
	}
	if err := s.doctors.ToggleAvailability(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDoctorNotFound
		}
		return internal(err)
	}
	return nil
}

func (s *DoctorService) Profile(ctx context.Context, doctorID string) (*models.Doctor, error) {
	id, err := parseID(doctorID, ErrDoctorNotFound)
	if err != nil {
		return nil, err
	}
	doctor, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, internal(err)
	}
	return doctor, nil
}

// UpdateProfile overwrites the doctor's fees, address and availability as given.
func (s *DoctorService) UpdateProfile(ctx context.Context, doctorID string, fees float64, address models.Address, available bool) error {
	id, err := parseID(doctorID, ErrDoctorNotFound)
	if err != nil {
		return err
	}
	if err := s.doctors.UpdateProfile(ctx, id, fees, address, available); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDoctorNotFound
		}
		return internal(err)
	}
	return nil
}

// Remove deletes the doctor together with their appointments and reviews.
func (s *DoctorService) Remove(ctx context.Context, doctorID string) error {
	id, err := parseID(doctorID, ErrDoctorNotFound)
	if err != nil {
		return err
	}
	if err := s.doctors.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDoctorNotFound
		}
		return internal(err)
	}
	s.log.Info().Str("doctor_id", doctorID).Msg("Doctor removed")
	return nil
}
