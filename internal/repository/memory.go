package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/prescripto-api/internal/models"
)

// memDB backs the in-memory store used by STORE_DRIVER=memory and by tests.
// Every repository shares one lock so multi-collection writes stay atomic.
type memDB struct {
	mu           sync.RWMutex
	users        map[primitive.ObjectID]*models.User
	doctors      map[primitive.ObjectID]*models.Doctor
	appointments map[primitive.ObjectID]*models.Appointment
	reviews      map[primitive.ObjectID]*models.Review
	outbox       map[string]*models.Notification
	resetTokens  map[string]memResetToken
	now          func() time.Time
}

type memResetToken struct {
	email   string
	expires time.Time
}

// NewMemoryStore returns a Store whose repositories live in process memory.
func NewMemoryStore() *Store {
	db := &memDB{
		users:        make(map[primitive.ObjectID]*models.User),
		doctors:      make(map[primitive.ObjectID]*models.Doctor),
		appointments: make(map[primitive.ObjectID]*models.Appointment),
		reviews:      make(map[primitive.ObjectID]*models.Review),
		outbox:       make(map[string]*models.Notification),
		resetTokens:  make(map[string]memResetToken),
		now:          time.Now,
	}
	return &Store{
		Users:        &memUsers{db},
		Doctors:      &memDoctors{db},
		Appointments: &memAppointments{db},
		Reviews:      &memReviews{db},
		Outbox:       &memOutbox{db},
	}
}

// NewMemoryResetTokens returns a ResetTokenStore kept in process memory.
func NewMemoryResetTokens() ResetTokenStore {
	return &memResetTokens{&memDB{resetTokens: make(map[string]memResetToken), now: time.Now}}
}

// --- users ---

type memUsers struct{ db *memDB }

func (r *memUsers) Create(_ context.Context, u *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	c := *u
	r.db.users[u.ID] = &c
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memUsers) GetMany(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memUsers) update(id primitive.ObjectID, fn func(u *models.User) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return ErrNotFound
	}
	return fn(u)
}

func (r *memUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, p models.ProfileUpdate) error {
	return r.update(id, func(u *models.User) error {
		u.Name, u.Address, u.Gender, u.DOB, u.Phone = p.Name, p.Address, p.Gender, p.DOB, p.Phone
		return nil
	})
}

func (r *memUsers) SetImage(_ context.Context, id primitive.ObjectID, url string) error {
	return r.update(id, func(u *models.User) error {
		u.Image = url
		return nil
	})
}

func (r *memUsers) SetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	return r.update(id, func(u *models.User) error {
		u.Password = hash
		u.VerifyOTP = ""
		u.OTPExpiry = nil
		return nil
	})
}

func (r *memUsers) SetOTP(_ context.Context, id primitive.ObjectID, otp string, expiry time.Time) error {
	return r.update(id, func(u *models.User) error {
		u.VerifyOTP = otp
		u.OTPExpiry = &expiry
		return nil
	})
}

func (r *memUsers) ClearOTP(_ context.Context, id primitive.ObjectID, otp string) error {
	return r.update(id, func(u *models.User) error {
		if u.VerifyOTP == "" || u.VerifyOTP != otp {
			return ErrConflict
		}
		u.VerifyOTP = ""
		u.OTPExpiry = nil
		return nil
	})
}

func (r *memUsers) Count(_ context.Context) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return int64(len(r.db.users)), nil
}

// --- doctors ---

type memDoctors struct{ db *memDB }

func copyDoctor(d *models.Doctor) *models.Doctor {
	c := *d
	c.SlotsBooked = make(models.SlotMap, len(d.SlotsBooked))
	for date, times := range d.SlotsBooked {
		c.SlotsBooked[date] = append([]string(nil), times...)
	}
	return &c
}

func (r *memDoctors) Create(_ context.Context, d *models.Doctor) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.doctors {
		if strings.EqualFold(existing.Email, d.Email) {
			return ErrDuplicate
		}
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	r.db.doctors[d.ID] = copyDoctor(d)
	return nil
}

func (r *memDoctors) GetByID(_ context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	d, ok := r.db.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoctor(d), nil
}

func (r *memDoctors) GetByEmail(_ context.Context, email string) (*models.Doctor, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, d := range r.db.doctors {
		if strings.EqualFold(d.Email, email) {
			return copyDoctor(d), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memDoctors) GetMany(_ context.Context, ids []primitive.ObjectID) ([]models.Doctor, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Doctor, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.db.doctors[id]; ok {
			out = append(out, *copyDoctor(d))
		}
	}
	return out, nil
}

func (r *memDoctors) List(_ context.Context) ([]models.Doctor, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Doctor, 0, len(r.db.doctors))
	for _, d := range r.db.doctors {
		out = append(out, *copyDoctor(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *memDoctors) update(id primitive.ObjectID, fn func(d *models.Doctor) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.doctors[id]
	if !ok {
		return ErrNotFound
	}
	return fn(d)
}

func (r *memDoctors) ToggleAvailability(_ context.Context, id primitive.ObjectID) error {
	return r.update(id, func(d *models.Doctor) error {
		d.Available = !d.Available
		return nil
	})
}

func (r *memDoctors) UpdateProfile(_ context.Context, id primitive.ObjectID, fees float64, address models.Address, available bool) error {
	return r.update(id, func(d *models.Doctor) error {
		d.Fees, d.Address, d.Available = fees, address, available
		return nil
	})
}

func (r *memDoctors) SetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	return r.update(id, func(d *models.Doctor) error {
		d.Password = hash
		return nil
	})
}

func (r *memDoctors) ReserveSlot(_ context.Context, id primitive.ObjectID, slotDate, slotTime string) error {
	return r.update(id, func(d *models.Doctor) error {
		if !d.Available || d.SlotsBooked.Has(slotDate, slotTime) {
			return ErrConflict
		}
		if d.SlotsBooked == nil {
			d.SlotsBooked = models.SlotMap{}
		}
		d.SlotsBooked[slotDate] = append(d.SlotsBooked[slotDate], slotTime)
		return nil
	})
}

func (r *memDoctors) ReleaseSlot(_ context.Context, id primitive.ObjectID, slotDate, slotTime string) error {
	return r.update(id, func(d *models.Doctor) error {
		times := d.SlotsBooked[slotDate]
		kept := times[:0]
		for _, t := range times {
			if t != slotTime {
				kept = append(kept, t)
			}
		}
		if times != nil {
			d.SlotsBooked[slotDate] = kept
		}
		return nil
	})
}

func (r *memDoctors) SetRating(_ context.Context, id primitive.ObjectID, average float64, count int) error {
	return r.update(id, func(d *models.Doctor) error {
		d.AverageRating, d.RatingCount = average, count
		return nil
	})
}

func (r *memDoctors) DeleteCascade(_ context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.doctors[id]; !ok {
		return ErrNotFound
	}
	delete(r.db.doctors, id)
	for aid, a := range r.db.appointments {
		if a.DocID == id {
			delete(r.db.appointments, aid)
		}
	}
	for rid, rv := range r.db.reviews {
		if rv.Doctor == id {
			delete(r.db.reviews, rid)
		}
	}
	return nil
}

func (r *memDoctors) Count(_ context.Context) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return int64(len(r.db.doctors)), nil
}

// --- appointments ---

type memAppointments struct{ db *memDB }

func (r *memAppointments) Create(_ context.Context, a *models.Appointment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	c := *a
	r.db.appointments[a.ID] = &c
	return nil
}

func (r *memAppointments) GetByID(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *a
	return &c, nil
}

// filter returns matching appointments newest first.
func (r *memAppointments) filter(keep func(a *models.Appointment) bool) []models.Appointment {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Appointment, 0)
	for _, a := range r.db.appointments {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date == out[j].Date {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].Date > out[j].Date
	})
	return out
}

func (r *memAppointments) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Appointment, error) {
	return r.filter(func(a *models.Appointment) bool { return a.UserID == userID }), nil
}

func (r *memAppointments) ListByDoctor(_ context.Context, docID primitive.ObjectID) ([]models.Appointment, error) {
	return r.filter(func(a *models.Appointment) bool { return a.DocID == docID }), nil
}

func (r *memAppointments) ListAll(_ context.Context) ([]models.Appointment, error) {
	return r.filter(func(*models.Appointment) bool { return true }), nil
}

func (r *memAppointments) Latest(ctx context.Context, limit int) ([]models.Appointment, error) {
	all, _ := r.ListAll(ctx)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memAppointments) update(id primitive.ObjectID, fn func(a *models.Appointment) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.appointments[id]
	if !ok {
		return ErrNotFound
	}
	return fn(a)
}

func (r *memAppointments) MarkCancelled(_ context.Context, id primitive.ObjectID) error {
	return r.update(id, func(a *models.Appointment) error {
		if a.Cancelled || a.IsCompleted {
			return ErrConflict
		}
		a.Cancelled = true
		return nil
	})
}

func (r *memAppointments) MarkCompleted(_ context.Context, id primitive.ObjectID) error {
	return r.update(id, func(a *models.Appointment) error {
		if a.Cancelled || a.IsCompleted {
			return ErrConflict
		}
		a.IsCompleted = true
		return nil
	})
}

func (r *memAppointments) MarkPaid(_ context.Context, id primitive.ObjectID) error {
	return r.update(id, func(a *models.Appointment) error {
		if a.Cancelled || a.Payment {
			return ErrConflict
		}
		a.Payment = true
		return nil
	})
}

func (r *memAppointments) SetPaymentLink(_ context.Context, id primitive.ObjectID, linkID string) error {
	return r.update(id, func(a *models.Appointment) error {
		a.PaymentLinkID = linkID
		return nil
	})
}

func (r *memAppointments) Count(_ context.Context) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return int64(len(r.db.appointments)), nil
}

// --- reviews ---

type memReviews struct{ db *memDB }

func (r *memReviews) Create(_ context.Context, rv *models.Review) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.reviews {
		if existing.Appointment == rv.Appointment {
			return ErrDuplicate
		}
	}
	if rv.ID.IsZero() {
		rv.ID = primitive.NewObjectID()
	}
	c := *rv
	r.db.reviews[rv.ID] = &c
	return nil
}

func (r *memReviews) GetByID(_ context.Context, id primitive.ObjectID) (*models.Review, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	rv, ok := r.db.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *rv
	return &c, nil
}

func (r *memReviews) Delete(_ context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.reviews[id]; !ok {
		return ErrNotFound
	}
	delete(r.db.reviews, id)
	return nil
}

func (r *memReviews) filter(keep func(rv *models.Review) bool) []models.Review {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Review, 0)
	for _, rv := range r.db.reviews {
		if keep(rv) {
			out = append(out, *rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memReviews) List(_ context.Context, doctorID *primitive.ObjectID) ([]models.Review, error) {
	return r.filter(func(rv *models.Review) bool {
		return doctorID == nil || rv.Doctor == *doctorID
	}), nil
}

func (r *memReviews) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Review, error) {
	return r.filter(func(rv *models.Review) bool { return rv.User == userID }), nil
}

func (r *memReviews) Stats(_ context.Context, doctorID primitive.ObjectID) (RatingStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var sum, n int
	for _, rv := range r.db.reviews {
		if rv.Doctor == doctorID {
			sum += rv.Rating
			n++
		}
	}
	if n == 0 {
		return RatingStats{}, nil
	}
	return RatingStats{Average: float64(sum) / float64(n), Count: n}, nil
}

// --- outbox ---

type memOutbox struct{ db *memDB }

func (r *memOutbox) Enqueue(_ context.Context, n *models.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	c := *n
	r.db.outbox[n.ID] = &c
	return nil
}

func (r *memOutbox) GetByID(_ context.Context, id string) (*models.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	n, ok := r.db.outbox[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *n
	return &c, nil
}

func (r *memOutbox) Claim(_ context.Context, id string, now, leaseEnd time.Time) (*models.Notification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.outbox[id]
	if !ok {
		return nil, ErrNotFound
	}
	if n.Status == models.NotificationSent || leased(n, now) {
		return nil, ErrConflict
	}
	n.Status = models.NotificationSending
	n.LeaseEnd = &leaseEnd
	c := *n
	return &c, nil
}

func leased(n *models.Notification, now time.Time) bool {
	return n.Status == models.NotificationSending && n.LeaseEnd != nil && n.LeaseEnd.After(now)
}

func (r *memOutbox) MarkSent(_ context.Context, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.outbox[id]
	if !ok {
		return ErrNotFound
	}
	n.Status = models.NotificationSent
	n.Attempts++
	n.SentAt = &at
	n.LeaseEnd = nil
	n.LastError = ""
	return nil
}

func (r *memOutbox) MarkFailed(_ context.Context, id string, reason string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.outbox[id]
	if !ok {
		return ErrNotFound
	}
	n.Status = models.NotificationFailed
	n.Attempts++
	n.LeaseEnd = nil
	n.LastError = reason
	return nil
}

func (r *memOutbox) Due(_ context.Context, now, olderThan time.Time, maxAttempts, limit int) ([]models.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]models.Notification, 0)
	for _, n := range r.db.outbox {
		if n.Status == models.NotificationSent || leased(n, now) {
			continue
		}
		if n.Attempts < maxAttempts && n.CreatedAt.Before(olderThan) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- reset tokens ---

type memResetTokens struct{ db *memDB }

func (r *memResetTokens) Issue(_ context.Context, email string, ttl time.Duration) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	token := uuid.NewString()
	r.db.resetTokens[token] = memResetToken{email: email, expires: r.db.now().Add(ttl)}
	return token, nil
}

func (r *memResetTokens) Consume(_ context.Context, token string) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.resetTokens[token]
	if !ok {
		return "", ErrNotFound
	}
	delete(r.db.resetTokens, token)
	if !r.db.now().Before(t.expires) {
		return "", ErrNotFound
	}
	return t.email, nil
}
