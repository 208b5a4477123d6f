package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/repository"
	"github.com/harentsoaR/prescripto-api/internal/utils"
)

func init() {
	utils.BcryptCost = bcrypt.MinCost
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentNotification struct {
	Kind models.NotificationKind
	To   string
	Data map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, kind models.NotificationKind, to string, data map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Kind: kind, To: to, Data: data})
}

func (n *recordingNotifier) ofKind(kind models.NotificationKind) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type fakeLink struct {
	paid bool
	ref  string
}

// fakeGateway accepts webhooks signed "valid" whose body is
// {"event": ..., "reference": ...}.
type fakeGateway struct {
	mu      sync.Mutex
	links   map[string]*fakeLink
	created []CheckoutRequest
	fail    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{links: make(map[string]*fakeLink)}
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return nil, g.fail
	}
	id := fmt.Sprintf("plink_%d", len(g.created)+1)
	g.created = append(g.created, req)
	g.links[id] = &fakeLink{ref: req.ReferenceID}
	return &Checkout{ID: id, URL: "https://rzp.io/i/" + id}, nil
}

func (g *fakeGateway) CheckoutStatus(_ context.Context, id string) (*CheckoutStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.links[id]
	if !ok {
		return nil, errors.New("payment link not found")
	}
	return &CheckoutStatus{Paid: l.paid, ReferenceID: l.ref}, nil
}

func (g *fakeGateway) ParseWebhook(body []byte, signature string) (*WebhookEvent, error) {
	if signature != "valid" {
		return nil, ErrBadWebhookSignature
	}
	var p struct {
		Event     string `json:"event"`
		Checkout  string `json:"checkout"`
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &WebhookEvent{Event: p.Event, CheckoutID: p.Checkout, ReferenceID: p.Reference}, nil
}

func (g *fakeGateway) pay(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.links[id].paid = true
}

type fakeImages struct {
	err      error
	uploaded []string
}

func (f *fakeImages) UploadImage(_ context.Context, file io.Reader, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	f.uploaded = append(f.uploaded, filename)
	return "https://images.example.com/" + filename, nil
}

type testEnv struct {
	svc      *Services
	store    *repository.Store
	notifier *recordingNotifier
	gateway  *fakeGateway
	images   *fakeImages
	clock    *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    repository.NewMemoryStore(),
		notifier: &recordingNotifier{},
		gateway:  newFakeGateway(),
		images:   &fakeImages{},
		clock:    newTestClock(),
	}
	env.svc = New(Deps{
		Store:        env.store,
		ResetTokens:  repository.NewMemoryResetTokens(),
		JWT:          utils.NewJWTManager("test-secret", time.Hour),
		Notifier:     env.notifier,
		Images:       env.images,
		Payments:     env.gateway,
		Admin:        AdminCredentials{Email: "admin@prescripto.com", Password: "admin-password"},
		Payment:      PaymentOptions{Currency: "INR", CallbackURL: "http://localhost:5173/my-appointments"},
		ContactInbox: "support@prescripto.com",
		AppURL:       "http://localhost:5173",
		Log:          zerolog.Nop(),
		Now:          env.clock.Now,
	})
	return env
}

func (e *testEnv) addUser(t *testing.T, name, email string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)
	u := models.NewUser(name, email, hash)
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u
}

func (e *testEnv) addDoctor(t *testing.T, name, email string, fees float64) *models.Doctor {
	t.Helper()
	hash, err := utils.HashPassword("doctor-pass")
	require.NoError(t, err)
	d := &models.Doctor{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Email:       email,
		Password:    hash,
		Speciality:  "General physician",
		Available:   true,
		Fees:        fees,
		SlotsBooked: models.SlotMap{},
	}
	require.NoError(t, e.store.Doctors.Create(context.Background(), d))
	return d
}

func (e *testEnv) doctor(t *testing.T, id primitive.ObjectID) *models.Doctor {
	t.Helper()
	d, err := e.store.Doctors.GetByID(context.Background(), id)
	require.NoError(t, err)
	return d
}

func (e *testEnv) appointment(t *testing.T, id primitive.ObjectID) *models.Appointment {
	t.Helper()
	a, err := e.store.Appointments.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}
