package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
)

const latestAppointments = 5

type AdminDashboard struct {
	Doctors            int64                `json:"doctors"`
	Appointments       int64                `json:"appointments"`
	Patients           int64                `json:"patients"`
	LatestAppointments []models.Appointment `json:"latestAppointments"`
}

type DoctorDashboard struct {
	Earnings           float64              `json:"earnings"`
	Appointments       int                  `json:"appointments"`
	Patients           int                  `json:"patients"`
	LatestAppointments []models.Appointment `json:"latestAppointments"`
	Rating             float64              `json:"rating"`
	RatingCount        int                  `json:"ratingCount"`
}

type DashboardService struct {
	users        repository.UserRepository
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
}

func (s *DashboardService) Admin(ctx context.Context) (*AdminDashboard, error) {
	doctors, err := s.doctors.Count(ctx)
	if err != nil {
		return nil, internal(err)
	}
	patients, err := s.users.Count(ctx)
	if err != nil {
		return nil, internal(err)
	}
	appointments, err := s.appointments.Count(ctx)
	if err != nil {
		return nil, internal(err)
	}
	latest, err := s.appointments.Latest(ctx, latestAppointments)
	if err != nil {
		return nil, internal(err)
	}
	return &AdminDashboard{
		Doctors:            doctors,
		Appointments:       appointments,
		Patients:           patients,
		LatestAppointments: latest,
	}, nil
}

// Doctor summarizes a doctor's appointments. Earnings count appointments that
// were completed or paid.
func (s *DashboardService) Doctor(ctx context.Context, doctorID string) (*DoctorDashboard, error) {
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
	appts, err := s.appointments.ListByDoctor(ctx, id)
	if err != nil {
		return nil, internal(err)
	}

	dash := &DoctorDashboard{
		Appointments: len(appts),
		Rating:       doctor.AverageRating,
		RatingCount:  doctor.RatingCount,
	}
	patients := make(map[primitive.ObjectID]struct{})
	for _, a := range appts {
		if a.IsCompleted || a.Payment {
			dash.Earnings += a.Amount
		}
		patients[a.UserID] = struct{}{}
	}
	dash.Patients = len(patients)

	// ListByDoctor is newest first.
	if len(appts) > latestAppointments {
		appts = appts[:latestAppointments]
	}
	dash.LatestAppointments = appts
	return dash, nil
}
