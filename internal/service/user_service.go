package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/mailer"
	"github.com/movenorth/booking-backend/internal/model"
	"github.com/movenorth/booking-backend/internal/queue"
	"github.com/movenorth/booking-backend/internal/repository"
	"github.com/movenorth/booking-backend/internal/utils"
)

// SignupCommand carries validated signup input.
type SignupCommand struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

// AuthResult is returned by Login: the user plus a fresh token pair.
type AuthResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// UserService owns the user directory and the credential/token flows.
type UserService struct {
	users     repository.UserStore
	bookings  repository.BookingStore
	blocklist repository.Blocklist
	issuer    *utils.TokenIssuer
	signer    *utils.Signer
	sink      mailer.Sink
	log       zerolog.Logger

	bcryptCost int
	domain     string // public hostname for verification/reset links
}

func NewUserService(
	users repository.UserStore,
	bookings repository.BookingStore,
	blocklist repository.Blocklist,
	issuer *utils.TokenIssuer,
	signer *utils.Signer,
	sink mailer.Sink,
	log zerolog.Logger,
	bcryptCost int,
	domain string,
) *UserService {
	return &UserService{
		users:      users,
		bookings:   bookings,
		blocklist:  blocklist,
		issuer:     issuer,
		signer:     signer,
		sink:       sink,
		log:        log,
		bcryptCost: bcryptCost,
		domain:     domain,
	}
}

// Signup creates a user account, sends the verification email and
// backfills earlier bookings submitted with the same email.
func (s *UserService) Signup(ctx context.Context, cmd SignupCommand) (*model.User, error) {
	cmd.Email = strings.ToLower(strings.TrimSpace(cmd.Email))
	if cmd.Email == "" || cmd.Username == "" {
		return nil, apperr.New(apperr.KindValidation, "username and email are required")
	}
	if len(cmd.Password) < 8 {
		return nil, apperr.New(apperr.KindValidation, "password must be at least 8 characters")
	}

	if _, err := s.users.GetByUsername(ctx, cmd.Username); err == nil {
		return nil, apperr.New(apperr.KindConflict, "username already exists")
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, cmd.Email); err == nil {
		return nil, apperr.New(apperr.KindConflict, "user email already exists")
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(cmd.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		FirstName:    cmd.FirstName,
		LastName:     cmd.LastName,
		Username:     cmd.Username,
		Email:        cmd.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		IsVerified:   false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	// Bookings placed before the account existed get linked now.
	if n, err := s.bookings.BackfillUserLinks(ctx, user.Email, user.UID); err != nil {
		s.log.Error().Err(err).Str("user_uid", user.UID).Msg("booking backfill failed")
	} else if n > 0 {
		s.log.Info().Int64("bookings", n).Str("user_uid", user.UID).Msg("backfilled bookings to new user")
	}

	s.sendVerificationEmail(ctx, user)
	return user, nil
}

func (s *UserService) sendVerificationEmail(ctx context.Context, user *model.User) {
	token, err := s.signer.Sign(map[string]string{"email": user.Email})
	if err != nil {
		s.log.Error().Err(err).Msg("sign verification token")
		return
	}
	link := fmt.Sprintf("http://%s/api/v1/auth/verify/%s", s.domain, token)
	event := queue.EmailEvent{
		Recipients: []string{user.Email},
		Subject:    "Verify Your Email",
		Template:   queue.TemplateVerifyEmail,
		Context:    map[string]string{"name": user.Username, "verification_link": link},
	}
	if err := s.sink.Send(ctx, event); err != nil {
		s.log.Error().Err(err).Str("email", user.Email).Msg("queue verification email")
	}
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.New(apperr.KindUnauthorized, "invalid email or password")
		}
		return nil, err
	}
	if !utils.VerifyPassword(password, user.PasswordHash) {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid email or password")
	}

	payload := utils.UserPayload{
		UID:        user.UID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		IsVerified: user.IsVerified,
	}
	access, _, err := s.issuer.IssueAccess(payload)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.issuer.IssueRefresh(payload)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Logout blocklists the presented token's jti for its remaining
// lifetime.
func (s *UserService) Logout(ctx context.Context, claims *utils.Claims) error {
	return s.blocklist.Revoke(ctx, claims.ID, claims.Remaining(time.Now().UTC()))
}

// RefreshAccess issues a new access token from a valid refresh token.
// The user is re-read so role and verification changes since login
// take effect.
func (s *UserService) RefreshAccess(ctx context.Context, claims *utils.Claims) (string, error) {
	if err := RequireRefresh(claims); err != nil {
		return "", err
	}
	user, err := s.users.GetByUID(ctx, claims.User.UID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return "", apperr.New(apperr.KindUnauthorized, "account no longer exists")
		}
		return "", err
	}
	access, _, err := s.issuer.IssueAccess(utils.UserPayload{
		UID:        user.UID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		IsVerified: user.IsVerified,
	})
	return access, err
}

// VerifyEmail redeems a single-use verification token. Redeeming twice
// is harmless: the flag is simply set again.
func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	data, err := s.signer.Decode(token)
	if err != nil {
		return err
	}
	email := data["email"]
	if email == "" {
		return apperr.New(apperr.KindInvalidToken, "token carries no email")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.users.SetVerified(ctx, user.UID)
}

// RequestPasswordReset emails a reset link. It does not reveal whether
// the address has an account.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	token, err := s.signer.Sign(map[string]string{"email": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		return err
	}
	link := fmt.Sprintf("http://%s/api/v1/auth/password-reset-confirm/%s", s.domain, token)
	return s.sink.Send(ctx, queue.EmailEvent{
		Recipients: []string{email},
		Subject:    "Reset Your Password",
		Template:   queue.TemplateResetPassword,
		Context:    map[string]string{"name": email, "reset_link": link},
	})
}

// ConfirmPasswordReset redeems a reset token and stores the new
// password hash.
func (s *UserService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return apperr.New(apperr.KindValidation, "password must be at least 8 characters")
	}
	data, err := s.signer.Decode(token)
	if err != nil {
		return err
	}
	email := data["email"]
	if email == "" {
		return apperr.New(apperr.KindInvalidToken, "token carries no email")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, user.UID, hash)
}

// GetByUID returns a single user.
func (s *UserService) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	return s.users.GetByUID(ctx, uid)
}

// List returns all users, newest first.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}
