package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/prescripto-api/internal/models"
)

func requestOTP(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	require.NoError(t, env.svc.Passwords.RequestReset(context.Background(), email))
	sent := env.notifier.ofKind(models.KindPasswordOTP)
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].Data["otp"]
}

func TestPasswordReset_FullFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "Jane Doe", "jane@example.com")

	otp := requestOTP(t, env, "Jane@Example.com")
	require.Len(t, otp, 4)

	_, err := env.svc.Passwords.VerifyOTP(ctx, "jane@example.com", "0000")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	token, err := env.svc.Passwords.VerifyOTP(ctx, "jane@example.com", otp)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = env.svc.Passwords.VerifyOTP(ctx, "jane@example.com", otp)
	assert.ErrorIs(t, err, ErrInvalidOTP, "code is single use")

	assert.ErrorIs(t, env.svc.Passwords.Reset(ctx, "jane@example.com", "short", token), ErrWeakPassword)
	require.NoError(t, env.svc.Passwords.Reset(ctx, "jane@example.com", "brand-new-pass", token))
	assert.ErrorIs(t, env.svc.Passwords.Reset(ctx, "jane@example.com", "another-pass", token), ErrInvalidResetToken)

	_, err = env.svc.Auth.LoginUser(ctx, "jane@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.svc.Auth.LoginUser(ctx, "jane@example.com", "brand-new-pass")
	assert.NoError(t, err)
}

func TestPasswordReset_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "Jane Doe", "jane@example.com")
	env.addUser(t, "John Roe", "john@example.com")

	assert.Equal(t, "Email is required", AsError(env.svc.Passwords.RequestReset(ctx, " ")).Message)
	assert.ErrorIs(t, env.svc.Passwords.RequestReset(ctx, "nobody@example.com"), ErrUserNotFound)

	_, err := env.svc.Passwords.VerifyOTP(ctx, "jane@example.com", "")
	assert.ErrorIs(t, err, ErrOTPRequired)
	_, err = env.svc.Passwords.VerifyOTP(ctx, "jane@example.com", "1234")
	assert.ErrorIs(t, err, ErrInvalidOTP, "no code issued yet")

	otp := requestOTP(t, env, "jane@example.com")
	env.clock.Advance(OTPTTL + time.Second)
	_, err = env.svc.Passwords.VerifyOTP(ctx, "jane@example.com", otp)
	assert.ErrorIs(t, err, ErrOTPExpired)

	otp = requestOTP(t, env, "jane@example.com")
	env.clock.Advance(OTPTTL)
	_, err = env.svc.Passwords.VerifyOTP(ctx, "jane@example.com", otp)
	assert.ErrorIs(t, err, ErrOTPExpired, "code expires at exactly the expiry instant")

	otp = requestOTP(t, env, "jane@example.com")
	token, err := env.svc.Passwords.VerifyOTP(ctx, "jane@example.com", otp)
	require.NoError(t, err)

	err = env.svc.Passwords.Reset(ctx, "john@example.com", "brand-new-pass", token)
	assert.ErrorIs(t, err, ErrInvalidResetToken, "token is bound to the verified email")
	assert.ErrorIs(t, env.svc.Passwords.Reset(ctx, "jane@example.com", "brand-new-pass", ""), ErrInvalidResetToken)
}

func TestChangeUserPassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.addUser(t, "Jane Doe", "jane@example.com")
	id := user.ID.Hex()

	tests := []struct {
		name    string
		current string
		next    string
		want    string
	}{
		{"missing current", "", "new-password", "Current password is required"},
		{"missing new", "password123", "", "New password is required"},
		{"wrong current", "wrong-password", "new-password", "Current password is incorrect"},
		{"same password", "password123", "password123", "New password cannot be the same as the current password"},
		{"too short", "password123", "short", ErrWeakPassword.Message},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.svc.Passwords.ChangeUserPassword(ctx, id, tt.current, tt.next)
			require.Error(t, err)
			assert.Equal(t, tt.want, AsError(err).Message)
		})
	}

	require.NoError(t, env.svc.Passwords.ChangeUserPassword(ctx, id, "password123", "new-password"))
	_, err := env.svc.Auth.LoginUser(ctx, "jane@example.com", "new-password")
	assert.NoError(t, err)
	assert.Len(t, env.notifier.ofKind(models.KindPasswordChanged), 1)
}

func TestChangeDoctorPassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	doc := env.addDoctor(t, "Richard James", "richard@example.com", 50)

	err := env.svc.Passwords.ChangeDoctorPassword(ctx, doc.ID.Hex(), "wrong-password", "new-password")
	assert.Equal(t, "Current password is incorrect", AsError(err).Message)

	require.NoError(t, env.svc.Passwords.ChangeDoctorPassword(ctx, doc.ID.Hex(), "doctor-pass", "new-password"))
	_, err = env.svc.Auth.LoginDoctor(ctx, "richard@example.com", "new-password")
	assert.NoError(t, err)

	sent := env.notifier.ofKind(models.KindPasswordChanged)
	require.Len(t, sent, 1)
	assert.Equal(t, "Dr. Richard James", sent[0].Data["name"])
}
