package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
)

var errReviewable = notFound("Appointment not found or cancelled")

type ReviewService struct {
	reviews      repository.ReviewRepository
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	doctors      repository.DoctorRepository
	log          zerolog.Logger
	now          func() time.Time

	ratingLocks keyedMutex
}

// Add records the patient's review of a completed appointment and refreshes
// the doctor's rating.
func (s *ReviewService) Add(ctx context.Context, userID, doctorID, appointmentID string, rating int, comment string) (*models.Review, error) {
	if doctorID == "" || appointmentID == "" || rating == 0 {
		return nil, validation("Missing required fields")
	}
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, validation("Rating must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > models.MaxCommentLength {
		return nil, validation("Comment cannot exceed 500 characters")
	}

	uid, err := parseID(userID, ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	aid, err := parseID(appointmentID, errReviewable)
	if err != nil {
		return nil, err
	}

	appt, err := s.appointments.GetByID(ctx, aid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errReviewable
		}
		return nil, internal(err)
	}
	if appt.UserID != uid || appt.Cancelled || !appt.IsCompleted {
		return nil, errReviewable
	}
	if appt.DocID.Hex() != doctorID {
		return nil, validation("Doctor does not match the appointment")
	}

	review := &models.Review{
		ID:          primitive.NewObjectID(),
		User:        uid,
		Doctor:      appt.DocID,
		Appointment: aid,
		Rating:      rating,
		Comment:     comment,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrReviewExists
		}
		return nil, internal(err)
	}

	if err := s.RecomputeRating(ctx, appt.DocID); err != nil {
		s.log.Error().Err(err).Str("doctor_id", doctorID).Msg("Failed to recompute rating")
	}
	return review, nil
}

// Remove deletes one of the doctor's reviews.
func (s *ReviewService) Remove(ctx context.Context, doctorID, reviewID string) error {
	id, err := parseID(reviewID, ErrReviewNotFound)
	if err != nil {
		return err
	}
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReviewNotFound
		}
		return internal(err)
	}
	if review.Doctor.Hex() != doctorID {
		return ErrUnauthorizedAction
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReviewNotFound
		}
		return internal(err)
	}
	if err := s.RecomputeRating(ctx, review.Doctor); err != nil {
		s.log.Error().Err(err).Str("doctor_id", doctorID).Msg("Failed to recompute rating")
	}
	return nil
}

// RecomputeRating stores the mean and count of the doctor's reviews, both zero
// when none remain. Recomputes for one doctor run one at a time so a stale
// read never overwrites a newer one.
func (s *ReviewService) RecomputeRating(ctx context.Context, doctorID primitive.ObjectID) error {
	unlock := s.ratingLocks.Lock(doctorID.Hex())
	defer unlock()

	stats, err := s.reviews.Stats(ctx, doctorID)
	if err != nil {
		return err
	}
	avg := 0.0
	if stats.Count > 0 {
		avg = stats.Average
	}
	if err := s.doctors.SetRating(ctx, doctorID, avg, stats.Count); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

func (s *ReviewService) ListForDoctor(ctx context.Context, doctorID string) ([]models.ReviewView, error) {
	id, err := parseID(doctorID, ErrDoctorNotFound)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, &id)
}

// ListAll returns every review, or only one doctor's when doctorID is set.
func (s *ReviewService) ListAll(ctx context.Context, doctorID string) ([]models.ReviewView, error) {
	if doctorID == "" {
		return s.list(ctx, nil)
	}
	return s.ListForDoctor(ctx, doctorID)
}

func (s *ReviewService) list(ctx context.Context, doctorID *primitive.ObjectID) ([]models.ReviewView, error) {
	reviews, err := s.reviews.List(ctx, doctorID)
	if err != nil {
		return nil, internal(err)
	}
	return s.join(ctx, reviews)
}

// join attaches reviewer and doctor display fields to each review.
func (s *ReviewService) join(ctx context.Context, reviews []models.Review) ([]models.ReviewView, error) {
	userIDs := make([]primitive.ObjectID, 0, len(reviews))
	doctorIDs := make([]primitive.ObjectID, 0, len(reviews))
	for _, r := range reviews {
		userIDs = append(userIDs, r.User)
		doctorIDs = append(doctorIDs, r.Doctor)
	}

	users, err := s.users.GetMany(ctx, userIDs)
	if err != nil {
		return nil, internal(err)
	}
	doctors, err := s.doctors.GetMany(ctx, doctorIDs)
	if err != nil {
		return nil, internal(err)
	}
	userByID := make(map[primitive.ObjectID]*models.ReviewerInfo, len(users))
	for _, u := range users {
		userByID[u.ID] = &models.ReviewerInfo{ID: u.ID, Name: u.Name, Image: u.Image}
	}
	doctorByID := make(map[primitive.ObjectID]*models.ReviewDoctorInfo, len(doctors))
	for _, d := range doctors {
		doctorByID[d.ID] = &models.ReviewDoctorInfo{ID: d.ID, Name: d.Name, Speciality: d.Speciality, Image: d.Image}
	}

	views := make([]models.ReviewView, 0, len(reviews))
	for _, r := range reviews {
		views = append(views, models.ReviewView{
			ID:          r.ID,
			User:        userByID[r.User],
			Doctor:      doctorByID[r.Doctor],
			Appointment: r.Appointment,
			Rating:      r.Rating,
			Comment:     r.Comment,
			CreatedAt:   r.CreatedAt,
		})
	}
	return views, nil
}

// ReviewedAppointments lists the ids of appointments the patient already reviewed.
func (s *ReviewService) ReviewedAppointments(ctx context.Context, userID string) ([]string, error) {
	id, err := parseID(userID, ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	reviews, err := s.reviews.ListByUser(ctx, id)
	if err != nil {
		return nil, internal(err)
	}
	ids := make([]string, 0, len(reviews))
	for _, r := range reviews {
		ids = append(ids, r.Appointment.Hex())
	}
	return ids, nil
}

// keyedMutex hands out one mutex per key.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
