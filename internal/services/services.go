package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
	"github.com/harentsoaR/prescripto-api/internal/utils"
)

// AdminCredentials are the single configured administrator login.
type AdminCredentials struct {
	Email    string
	Password string
}

type PaymentOptions struct {
	Currency    string
	CallbackURL string
}

// Deps is everything the services need from the outside world.
type Deps struct {
	Store        *repository.Store
	ResetTokens  repository.ResetTokenStore
	JWT          *utils.JWTManager
	Notifier     Notifier
	Images       ImageStore
	Payments     PaymentGateway // nil when online payment is not configured
	Admin        AdminCredentials
	Payment      PaymentOptions
	ContactInbox string
	AppURL       string
	Log          zerolog.Logger
	Now          func() time.Time
}

type Services struct {
	Auth         *AuthService
	Users        *UserService
	Doctors      *DoctorService
	Appointments *AppointmentService
	Payments     *PaymentService
	Reviews      *ReviewService
	Passwords    *PasswordService
	Dashboard    *DashboardService
	Contact      *ContactService
}

func New(d Deps) *Services {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Images == nil {
		d.Images = NewDisabledImageStore()
	}
	if d.Payment.Currency == "" {
		d.Payment.Currency = "INR"
	}

	reviews := &ReviewService{
		reviews:      d.Store.Reviews,
		appointments: d.Store.Appointments,
		users:        d.Store.Users,
		doctors:      d.Store.Doctors,
		log:          d.Log.With().Str("service", "reviews").Logger(),
		now:          d.Now,
	}

	return &Services{
		Auth: &AuthService{
			users:    d.Store.Users,
			doctors:  d.Store.Doctors,
			jwt:      d.JWT,
			notifier: d.Notifier,
			admin:    d.Admin,
			appURL:   d.AppURL,
			log:      d.Log.With().Str("service", "auth").Logger(),
		},
		Users: &UserService{
			users:  d.Store.Users,
			images: d.Images,
			log:    d.Log.With().Str("service", "users").Logger(),
		},
		Doctors: &DoctorService{
			doctors:  d.Store.Doctors,
			images:   d.Images,
			notifier: d.Notifier,
			log:      d.Log.With().Str("service", "doctors").Logger(),
			now:      d.Now,
		},
		Appointments: &AppointmentService{
			appointments: d.Store.Appointments,
			doctors:      d.Store.Doctors,
			users:        d.Store.Users,
			notifier:     d.Notifier,
			log:          d.Log.With().Str("service", "appointments").Logger(),
			now:          d.Now,
		},
		Payments: &PaymentService{
			appointments: d.Store.Appointments,
			gateway:      d.Payments,
			notifier:     d.Notifier,
			opts:         d.Payment,
			log:          d.Log.With().Str("service", "payments").Logger(),
			now:          d.Now,
		},
		Reviews: reviews,
		Passwords: &PasswordService{
			users:    d.Store.Users,
			doctors:  d.Store.Doctors,
			tokens:   d.ResetTokens,
			notifier: d.Notifier,
			log:      d.Log.With().Str("service", "passwords").Logger(),
			now:      d.Now,
		},
		Dashboard: &DashboardService{
			users:        d.Store.Users,
			doctors:      d.Store.Doctors,
			appointments: d.Store.Appointments,
		},
		Contact: &ContactService{
			inbox:    d.ContactInbox,
			notifier: d.Notifier,
		},
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.NotificationKind, string, map[string]string) {}

// parseID converts a hex id from the request; malformed ids report as notFoundErr.
func parseID(id string, notFoundErr *Error) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFoundErr
	}
	return oid, nil
}

// nowMillis returns t as unix milliseconds, the timestamp format stored on records.
func nowMillis(t time.Time) int64 {
	return t.UnixMilli()
}
