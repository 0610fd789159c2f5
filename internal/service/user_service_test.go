package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/model"
	"github.com/movenorth/booking-backend/internal/queue"
	"github.com/movenorth/booking-backend/internal/utils"
)

type userFixture struct {
	svc       *UserService
	users     *memUsers
	bookings  *memBookings
	blocklist *memBlocklist
	sink      *memSink
	issuer    *utils.TokenIssuer
}

func newUserFixture() *userFixture {
	users := newMemUsers()
	bookings := newMemBookings()
	blocklist := newMemBlocklist()
	sink := &memSink{}
	issuer := utils.NewTokenIssuer("test-secret", time.Hour, 48*time.Hour)
	signer := utils.NewSigner("test-secret", time.Hour)
	svc := NewUserService(users, bookings, blocklist, issuer, signer, sink,
		zerolog.Nop(), bcrypt.MinCost, "example.com")
	return &userFixture{svc: svc, users: users, bookings: bookings, blocklist: blocklist, sink: sink, issuer: issuer}
}

func validSignup() SignupCommand {
	return SignupCommand{
		FirstName: "John",
		LastName:  "Doe",
		Username:  "johndoe",
		Email:     "a@b.com",
		Password:  "correct horse",
	}
}

func TestSignupCreatesUnverifiedUser(t *testing.T) {
	f := newUserFixture()

	user, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.False(t, user.IsVerified)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	events := f.sink.sent()
	require.Len(t, events, 1)
	assert.Equal(t, queue.TemplateVerifyEmail, events[0].Template)
	assert.Contains(t, events[0].Context["verification_link"], "http://example.com/api/v1/auth/verify/")
}

func TestSignupBackfillsPriorBookings(t *testing.T) {
	f := newUserFixture()
	orphan := seedBooking(t, f.bookings, model.StatusPending, "")
	require.Nil(t, orphan.UserUID)

	user, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	linked, err := f.bookings.GetByUID(context.Background(), orphan.UID)
	require.NoError(t, err)
	require.NotNil(t, linked.UserUID)
	assert.Equal(t, user.UID, *linked.UserUID)
}

func TestSignupConflicts(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	dupUsername := validSignup()
	dupUsername.Email = "other@b.com"
	_, err = f.svc.Signup(context.Background(), dupUsername)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	dupEmail := validSignup()
	dupEmail.Username = "otheruser"
	_, err = f.svc.Signup(context.Background(), dupEmail)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestSignupValidation(t *testing.T) {
	f := newUserFixture()

	short := validSignup()
	short.Password = "short"
	_, err := f.svc.Signup(context.Background(), short)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	blank := validSignup()
	blank.Email = "  "
	_, err = f.svc.Signup(context.Background(), blank)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLoginIssuesTokenPair(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	result, err := f.svc.Login(context.Background(), "a@b.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	access, err := f.issuer.Decode(result.AccessToken)
	require.NoError(t, err)
	assert.False(t, access.Refresh)
	assert.Equal(t, "johndoe", access.User.Username)

	refresh, err := f.issuer.Decode(result.RefreshToken)
	require.NoError(t, err)
	assert.True(t, refresh.Refresh)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), "a@b.com", "wrong password")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = f.svc.Login(context.Background(), "nobody@b.com", "correct horse")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	result, err := f.svc.Login(context.Background(), "a@b.com", "correct horse")
	require.NoError(t, err)

	claims, err := f.issuer.Decode(result.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(context.Background(), claims))

	revoked, err := f.blocklist.IsRevoked(context.Background(), claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRefreshRequiresRefreshToken(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	result, err := f.svc.Login(context.Background(), "a@b.com", "correct horse")
	require.NoError(t, err)

	access, err := f.issuer.Decode(result.AccessToken)
	require.NoError(t, err)
	_, err = f.svc.RefreshAccess(context.Background(), access)
	assert.True(t, apperr.Is(err, apperr.KindWrongTokenType))

	refresh, err := f.issuer.Decode(result.RefreshToken)
	require.NoError(t, err)
	token, err := f.svc.RefreshAccess(context.Background(), refresh)
	require.NoError(t, err)

	fresh, err := f.issuer.Decode(token)
	require.NoError(t, err)
	assert.False(t, fresh.Refresh)
	assert.Equal(t, "johndoe", fresh.User.Username)
}

func TestRefreshForDeletedAccount(t *testing.T) {
	f := newUserFixture()
	refresh := &utils.Claims{User: utils.UserPayload{UID: "gone"}, Refresh: true}

	_, err := f.svc.RefreshAccess(context.Background(), refresh)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestVerifyEmailFlow(t *testing.T) {
	f := newUserFixture()
	user, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	events := f.sink.sent()
	require.Len(t, events, 1)
	link := events[0].Context["verification_link"]
	token := link[len("http://example.com/api/v1/auth/verify/"):]

	require.NoError(t, f.svc.VerifyEmail(context.Background(), token))
	stored, err := f.users.GetByUID(context.Background(), user.UID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)

	// Redeeming again is a no-op, not an error.
	assert.NoError(t, f.svc.VerifyEmail(context.Background(), token))

	err = f.svc.VerifyEmail(context.Background(), token+"x")
	assert.True(t, apperr.Is(err, apperr.KindInvalidToken))
}

func TestPasswordResetFlow(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "a@b.com"))
	events := f.sink.sent()
	require.Len(t, events, 2)
	reset := events[1]
	assert.Equal(t, queue.TemplateResetPassword, reset.Template)
	link := reset.Context["reset_link"]
	token := link[len("http://example.com/api/v1/auth/password-reset-confirm/"):]

	err = f.svc.ConfirmPasswordReset(context.Background(), token, "short")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, f.svc.ConfirmPasswordReset(context.Background(), token, "brand new password"))

	_, err = f.svc.Login(context.Background(), "a@b.com", "correct horse")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = f.svc.Login(context.Background(), "a@b.com", "brand new password")
	assert.NoError(t, err)
}
