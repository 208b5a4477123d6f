package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/utils"
)

func TestAuth_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	token, err := env.svc.Auth.Register(ctx, " Jane Doe ", "Jane@Example.com", "password123")
	require.NoError(t, err)

	jwt := utils.NewJWTManager("test-secret", 0)
	claims, err := jwt.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, utils.RoleUser, claims.Role)

	user, err := env.svc.Users.Profile(ctx, claims.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", user.Name)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, models.NotSelected, user.Gender)
	assert.NotEqual(t, "password123", user.Password)

	welcome := env.notifier.ofKind(models.KindWelcomeUser)
	require.Len(t, welcome, 1)
	assert.Equal(t, "jane@example.com", welcome[0].To)

	_, err = env.svc.Auth.LoginUser(ctx, "JANE@example.com", "password123")
	assert.NoError(t, err)
	_, err = env.svc.Auth.LoginUser(ctx, "jane@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.svc.Auth.LoginUser(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuth_RegisterRejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "Jane Doe", "jane@example.com")

	tests := []struct {
		name, user, email, password, want string
	}{
		{"missing name", "", "a@example.com", "password123", "All fields are required"},
		{"missing password", "A", "a@example.com", "", "All fields are required"},
		{"bad email", "A", "not-an-email", "password123", "Invalid email"},
		{"weak password", "A", "a@example.com", "short", ErrWeakPassword.Message},
		{"duplicate", "Jane", "JANE@example.com", "password123", "User already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Auth.Register(ctx, tt.user, tt.email, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.want, AsError(err).Message)
		})
	}
}

func TestAuth_LoginAdmin(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.svc.Auth.LoginAdmin("admin@prescripto.com", "admin-password")
	require.NoError(t, err)
	claims, err := utils.NewJWTManager("test-secret", 0).ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, utils.RoleAdmin, claims.Role)

	_, err = env.svc.Auth.LoginAdmin("admin@prescripto.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.svc.Auth.LoginAdmin("", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func validDoctor() NewDoctor {
	return NewDoctor{
		Name:       "Sarah Patel",
		Email:      "sarah@example.com",
		Password:   "welcome-123",
		Speciality: "Dermatologist",
		Degree:     "MBBS",
		Experience: "3 Years",
		About:      "Skin specialist",
		Fees:       40,
		Address:    models.Address{Line1: "57th Cross", Line2: "Richmond Circle"},
	}
}

func doctorImage() *ImageUpload {
	return &ImageUpload{File: strings.NewReader("png-bytes"), Filename: "sarah.png"}
}

func TestDoctors_CreateAndList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	doc, err := env.svc.Doctors.Create(ctx, validDoctor(), doctorImage())
	require.NoError(t, err)
	assert.True(t, doc.Available)
	assert.Equal(t, "https://images.example.com/sarah.png", doc.Image)
	assert.NotNil(t, doc.SlotsBooked)

	welcome := env.notifier.ofKind(models.KindWelcomeDoctor)
	require.Len(t, welcome, 1)
	for _, v := range welcome[0].Data {
		assert.NotContains(t, v, "welcome-123", "password is never mailed")
	}

	_, err = env.svc.Auth.LoginDoctor(ctx, "sarah@example.com", "welcome-123")
	assert.NoError(t, err)
	_, err = env.svc.Auth.LoginDoctor(ctx, "nobody@example.com", "welcome-123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	public, err := env.svc.Doctors.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Empty(t, public[0].Email)

	admin, err := env.svc.Doctors.List(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "sarah@example.com", admin[0].Email)

	_, err = env.svc.Doctors.Create(ctx, validDoctor(), doctorImage())
	assert.Equal(t, "Doctor already exists", AsError(err).Message)
}

func TestDoctors_CreateRejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	tests := []struct {
		name  string
		edit  func(d *NewDoctor)
		image *ImageUpload
		want  string
	}{
		{"missing about", func(d *NewDoctor) { d.About = "" }, doctorImage(), "Missing Details"},
		{"zero fees", func(d *NewDoctor) { d.Fees = 0 }, doctorImage(), "Missing Details"},
		{"bad email", func(d *NewDoctor) { d.Email = "sarah" }, doctorImage(), "Please enter a valid email"},
		{"weak password", func(d *NewDoctor) { d.Password = "123" }, doctorImage(), "Please enter a strong password"},
		{"no image", func(d *NewDoctor) {}, nil, "Image is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validDoctor()
			tt.edit(&in)
			_, err := env.svc.Doctors.Create(ctx, in, tt.image)
			require.Error(t, err)
			assert.Equal(t, tt.want, AsError(err).Message)
		})
	}

	env.images.err = errors.New("cloudinary down")
	_, err := env.svc.Doctors.Create(ctx, validDoctor(), doctorImage())
	assert.Equal(t, KindUpstream, AsError(err).Kind)

	all, err := env.svc.Doctors.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDoctors_AvailabilityProfileAndRemove(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.addUser(t, "Jane Doe", "jane@example.com")
	doc := env.addDoctor(t, "Richard James", "richard@example.com", 50)
	_, err := env.svc.Appointments.Book(ctx, user.ID.Hex(), doc.ID.Hex(), "20_7_2025", "10:00 AM")
	require.NoError(t, err)

	require.NoError(t, env.svc.Doctors.ToggleAvailability(ctx, doc.ID.Hex()))
	assert.False(t, env.doctor(t, doc.ID).Available)
	assert.ErrorIs(t, env.svc.Doctors.ToggleAvailability(ctx, "64f1c0c0c0c0c0c0c0c0c0c0"), ErrDoctorNotFound)

	require.NoError(t, env.svc.Doctors.UpdateProfile(ctx, doc.ID.Hex(), 0, models.Address{}, false))
	overwritten := env.doctor(t, doc.ID)
	assert.Zero(t, overwritten.Fees, "fields are overwritten as given")
	assert.Empty(t, overwritten.Address.Line1)
	assert.False(t, overwritten.Available)

	require.NoError(t, env.svc.Doctors.UpdateProfile(ctx, doc.ID.Hex(), 75, models.Address{Line1: "New street"}, true))
	assert.ErrorIs(t, env.svc.Doctors.UpdateProfile(ctx, "64f1c0c0c0c0c0c0c0c0c0c0", 75, models.Address{}, true), ErrDoctorNotFound)

	profile, err := env.svc.Doctors.Profile(ctx, doc.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 75.0, profile.Fees)
	assert.Equal(t, "New street", profile.Address.Line1)
	assert.True(t, profile.Available)

	require.NoError(t, env.svc.Doctors.Remove(ctx, doc.ID.Hex()))
	assert.ErrorIs(t, env.svc.Doctors.Remove(ctx, doc.ID.Hex()), ErrDoctorNotFound)

	mine, err := env.svc.Appointments.ListForUser(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, mine, "appointments go with the doctor")
}

func TestUsers_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.addUser(t, "Jane Doe", "jane@example.com")

	err := env.svc.Users.UpdateProfile(ctx, user.ID.Hex(), models.ProfileUpdate{Name: "Jane"}, nil)
	assert.Equal(t, "Data Missing", AsError(err).Message)

	update := models.ProfileUpdate{
		Name:    "Jane Smith",
		Phone:   "+15550001111",
		DOB:     "1990-01-01",
		Gender:  "Female",
		Address: models.Address{Line1: "1 Main St"},
	}
	image := &ImageUpload{File: strings.NewReader("jpg"), Filename: "me.jpg"}
	require.NoError(t, env.svc.Users.UpdateProfile(ctx, user.ID.Hex(), update, image))

	got, err := env.svc.Users.Profile(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", got.Name)
	assert.Equal(t, "1 Main St", got.Address.Line1)
	assert.Equal(t, "https://images.example.com/me.jpg", got.Image)

	_, err = env.svc.Users.Profile(ctx, "bogus")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDashboards(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	jane := env.addUser(t, "Jane Doe", "jane@example.com")
	john := env.addUser(t, "John Roe", "john@example.com")
	doc := env.addDoctor(t, "Richard James", "richard@example.com", 50)

	done := completedVisit(t, env, jane, doc, "10:00 AM")
	_, err := env.svc.Appointments.Book(ctx, john.ID.Hex(), doc.ID.Hex(), "20_7_2025", "11:00 AM")
	require.NoError(t, err)
	_, err = env.svc.Reviews.Add(ctx, jane.ID.Hex(), doc.ID.Hex(), done, 5, "")
	require.NoError(t, err)

	admin, err := env.svc.Dashboard.Admin(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, admin.Doctors)
	assert.EqualValues(t, 2, admin.Patients)
	assert.EqualValues(t, 2, admin.Appointments)
	assert.Len(t, admin.LatestAppointments, 2)

	dash, err := env.svc.Dashboard.Doctor(ctx, doc.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 50.0, dash.Earnings, "only the completed visit counts")
	assert.Equal(t, 2, dash.Appointments)
	assert.Equal(t, 2, dash.Patients)
	assert.Equal(t, 5.0, dash.Rating)
	assert.Equal(t, 1, dash.RatingCount)
}

func TestContact_Send(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	err := env.svc.Contact.Send(ctx, "Jane", "jane@example.com", "", "")
	assert.Equal(t, "All fields are required", AsError(err).Message)
	err = env.svc.Contact.Send(ctx, "Jane", "jane", "", "Hello")
	assert.Equal(t, "Invalid email", AsError(err).Message)

	require.NoError(t, env.svc.Contact.Send(ctx, "Jane", "jane@example.com", "Billing", "Hello"))
	sent := env.notifier.ofKind(models.KindContactInquiry)
	require.Len(t, sent, 1)
	assert.Equal(t, "support@prescripto.com", sent[0].To)
	assert.Equal(t, "Billing", sent[0].Data["subject"])
}
