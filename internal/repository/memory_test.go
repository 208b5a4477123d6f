package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/prescripto-api/internal/models"
)

func seedDoctor(t *testing.T, store *Store) *models.Doctor {
	t.Helper()
	d := &models.Doctor{
		ID:        primitive.NewObjectID(),
		Name:      "Richard James",
		Email:     "richard@example.com",
		Available: true,
		Fees:      50,
	}
	require.NoError(t, store.Doctors.Create(context.Background(), d))
	return d
}

func TestMemoryDoctors_ReserveSlot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := seedDoctor(t, store)

	require.NoError(t, store.Doctors.ReserveSlot(ctx, d.ID, "20_7_2025", "10:00 AM"))
	assert.ErrorIs(t, store.Doctors.ReserveSlot(ctx, d.ID, "20_7_2025", "10:00 AM"), ErrConflict)
	require.NoError(t, store.Doctors.ReserveSlot(ctx, d.ID, "20_7_2025", "10:30 AM"))
	require.NoError(t, store.Doctors.ReserveSlot(ctx, d.ID, "21_7_2025", "10:00 AM"))

	got, err := store.Doctors.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00 AM", "10:30 AM"}, got.SlotsBooked["20_7_2025"])
	assert.Equal(t, []string{"10:00 AM"}, got.SlotsBooked["21_7_2025"])

	require.NoError(t, store.Doctors.ReleaseSlot(ctx, d.ID, "20_7_2025", "10:00 AM"))
	got, err = store.Doctors.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:30 AM"}, got.SlotsBooked["20_7_2025"])

	assert.ErrorIs(t, store.Doctors.ReserveSlot(ctx, primitive.NewObjectID(), "20_7_2025", "10:00 AM"), ErrNotFound)
}

func TestMemoryDoctors_ReserveSlotUnavailable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := seedDoctor(t, store)

	require.NoError(t, store.Doctors.ToggleAvailability(ctx, d.ID))
	assert.ErrorIs(t, store.Doctors.ReserveSlot(ctx, d.ID, "20_7_2025", "10:00 AM"), ErrConflict)

	require.NoError(t, store.Doctors.ToggleAvailability(ctx, d.ID))
	assert.NoError(t, store.Doctors.ReserveSlot(ctx, d.ID, "20_7_2025", "10:00 AM"))
}

func TestMemoryDoctors_ConcurrentReservation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := seedDoctor(t, store)

	const attempts = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Doctors.ReserveSlot(ctx, d.ID, "20_7_2025", "11:00 AM"); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	got, err := store.Doctors.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00 AM"}, got.SlotsBooked["20_7_2025"])
}

func TestMemoryDoctors_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := seedDoctor(t, store)
	require.NoError(t, store.Doctors.ReserveSlot(ctx, d.ID, "20_7_2025", "10:00 AM"))

	got, err := store.Doctors.GetByID(ctx, d.ID)
	require.NoError(t, err)
	got.SlotsBooked["20_7_2025"][0] = "tampered"

	again, err := store.Doctors.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00 AM"}, again.SlotsBooked["20_7_2025"])
}

func TestMemoryDoctors_DeleteCascade(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := seedDoctor(t, store)
	other := &models.Doctor{ID: primitive.NewObjectID(), Email: "other@example.com", Available: true}
	require.NoError(t, store.Doctors.Create(ctx, other))

	mine := &models.Appointment{ID: primitive.NewObjectID(), DocID: d.ID}
	theirs := &models.Appointment{ID: primitive.NewObjectID(), DocID: other.ID}
	require.NoError(t, store.Appointments.Create(ctx, mine))
	require.NoError(t, store.Appointments.Create(ctx, theirs))
	require.NoError(t, store.Reviews.Create(ctx, &models.Review{Doctor: d.ID, Appointment: mine.ID, Rating: 4}))
	require.NoError(t, store.Reviews.Create(ctx, &models.Review{Doctor: other.ID, Appointment: theirs.ID, Rating: 5}))

	require.NoError(t, store.Doctors.DeleteCascade(ctx, d.ID))

	_, err := store.Doctors.GetByID(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Appointments.GetByID(ctx, mine.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Appointments.GetByID(ctx, theirs.ID)
	assert.NoError(t, err)

	reviews, err := store.Reviews.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, other.ID, reviews[0].Doctor)

	assert.ErrorIs(t, store.Doctors.DeleteCascade(ctx, d.ID), ErrNotFound)
}

func TestMemoryDoctors_DuplicateEmail(t *testing.T) {
	store := NewMemoryStore()
	seedDoctor(t, store)
	err := store.Doctors.Create(context.Background(), &models.Doctor{Email: "RICHARD@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryAppointments_ConditionalTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := &models.Appointment{ID: primitive.NewObjectID()}
	require.NoError(t, store.Appointments.Create(ctx, a))

	require.NoError(t, store.Appointments.MarkCompleted(ctx, a.ID))
	assert.ErrorIs(t, store.Appointments.MarkCompleted(ctx, a.ID), ErrConflict)
	assert.ErrorIs(t, store.Appointments.MarkCancelled(ctx, a.ID), ErrConflict)

	require.NoError(t, store.Appointments.MarkPaid(ctx, a.ID))
	assert.ErrorIs(t, store.Appointments.MarkPaid(ctx, a.ID), ErrConflict)

	b := &models.Appointment{ID: primitive.NewObjectID()}
	require.NoError(t, store.Appointments.Create(ctx, b))
	require.NoError(t, store.Appointments.MarkCancelled(ctx, b.ID))
	assert.ErrorIs(t, store.Appointments.MarkCancelled(ctx, b.ID), ErrConflict)
	assert.ErrorIs(t, store.Appointments.MarkPaid(ctx, b.ID), ErrConflict)

	assert.ErrorIs(t, store.Appointments.MarkCancelled(ctx, primitive.NewObjectID()), ErrNotFound)
}

func TestMemoryAppointments_NewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	user := primitive.NewObjectID()
	for _, date := range []int64{100, 300, 200} {
		require.NoError(t, store.Appointments.Create(ctx, &models.Appointment{UserID: user, Date: date}))
	}

	list, err := store.Appointments.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{300, 200, 100}, []int64{list[0].Date, list[1].Date, list[2].Date})

	latest, err := store.Appointments.Latest(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, latest, 2)
}

func TestMemoryReviews_UniquePerAppointmentAndStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	doctor := primitive.NewObjectID()
	appt := primitive.NewObjectID()

	require.NoError(t, store.Reviews.Create(ctx, &models.Review{Doctor: doctor, Appointment: appt, Rating: 5}))
	assert.ErrorIs(t, store.Reviews.Create(ctx, &models.Review{Doctor: doctor, Appointment: appt, Rating: 1}), ErrDuplicate)
	require.NoError(t, store.Reviews.Create(ctx, &models.Review{Doctor: doctor, Appointment: primitive.NewObjectID(), Rating: 2}))

	stats, err := store.Reviews.Stats(ctx, doctor)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.InDelta(t, 3.5, stats.Average, 1e-9)

	empty, err := store.Reviews.Stats(ctx, primitive.NewObjectID())
	require.NoError(t, err)
	assert.Equal(t, RatingStats{}, empty)
}

func TestMemoryUsers_ClearOTPIsSingleUse(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	u := models.NewUser("Jane", "jane@example.com", "hash")
	require.NoError(t, store.Users.Create(ctx, u))
	require.NoError(t, store.Users.SetOTP(ctx, u.ID, "1234", time.Now().Add(time.Minute)))

	assert.ErrorIs(t, store.Users.ClearOTP(ctx, u.ID, "9999"), ErrConflict)
	require.NoError(t, store.Users.ClearOTP(ctx, u.ID, "1234"))
	assert.ErrorIs(t, store.Users.ClearOTP(ctx, u.ID, "1234"), ErrConflict)

	got, err := store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.VerifyOTP)
	assert.Nil(t, got.OTPExpiry)
}

func TestMemoryOutbox_Due(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	old := &models.Notification{ID: "old", Status: models.NotificationPending, CreatedAt: now.Add(-time.Hour)}
	fresh := &models.Notification{ID: "fresh", Status: models.NotificationPending, CreatedAt: now}
	spent := &models.Notification{ID: "spent", Status: models.NotificationFailed, Attempts: 5, CreatedAt: now.Add(-time.Hour)}
	for _, n := range []*models.Notification{old, fresh, spent} {
		require.NoError(t, store.Outbox.Enqueue(ctx, n))
	}

	due, err := store.Outbox.Due(ctx, now, now.Add(-time.Minute), 5, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "old", due[0].ID)

	require.NoError(t, store.Outbox.MarkSent(ctx, "old", now))
	due, err = store.Outbox.Due(ctx, now, now.Add(-time.Minute), 5, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	sent, err := store.Outbox.GetByID(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSent, sent.Status)
	assert.Equal(t, 1, sent.Attempts)
}

func TestMemoryOutbox_ClaimLease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.Outbox.Enqueue(ctx, &models.Notification{
		ID: "n1", Status: models.NotificationPending, CreatedAt: now.Add(-time.Hour),
	}))

	claimed, err := store.Outbox.Claim(ctx, "n1", now, now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSending, claimed.Status)

	_, err = store.Outbox.Claim(ctx, "n1", now.Add(time.Minute), now.Add(6*time.Minute))
	assert.ErrorIs(t, err, ErrConflict)
	due, err := store.Outbox.Due(ctx, now.Add(time.Minute), now, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "leased entries are not due")

	// An expired lease can be taken over.
	later := now.Add(10 * time.Minute)
	due, err = store.Outbox.Due(ctx, later, later, 5, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
	_, err = store.Outbox.Claim(ctx, "n1", later, later.Add(5*time.Minute))
	require.NoError(t, err)

	require.NoError(t, store.Outbox.MarkSent(ctx, "n1", later))
	_, err = store.Outbox.Claim(ctx, "n1", later, later.Add(5*time.Minute))
	assert.ErrorIs(t, err, ErrConflict)
	sent, err := store.Outbox.GetByID(ctx, "n1")
	require.NoError(t, err)
	assert.Nil(t, sent.LeaseEnd)

	_, err = store.Outbox.Claim(ctx, "missing", now, now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryResetTokens(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryResetTokens()

	token, err := tokens.Issue(ctx, "jane@example.com", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	email, err := tokens.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", email)

	_, err = tokens.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)

	expired, err := tokens.Issue(ctx, "jane@example.com", -time.Second)
	require.NoError(t, err)
	_, err = tokens.Consume(ctx, expired)
	assert.ErrorIs(t, err, ErrNotFound)
}
