// Package auth logs members and administrators in and decides which area of
// the product a session belongs to.
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/app/validation"
	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/internal/tokens"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

// Area is the part of the product a session is routed to.
type Area string

const (
	AreaPublic Area = "public"
	AreaMember Area = "member"
	AreaAdmin  Area = "admin"
)

// Session is an authenticated identity decoded from the API token.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      user.Role `json:"user_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its expiry at now. Tokens
// without an expiry never expire.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Context attaches the session identity to ctx for services that scope
// their reads to the caller.
func (s Session) Context(ctx context.Context) context.Context {
	ctx = logging.WithUserID(ctx, s.UserID)
	return logging.WithRole(ctx, string(s.Role))
}

// AreaFor routes a session: admins to the admin area, members to the member
// area and everyone else to the public pages.
func AreaFor(s *Session) Area {
	if s == nil {
		return AreaPublic
	}
	switch s.Role {
	case user.RoleAdmin:
		return AreaAdmin
	case user.RoleUser:
		return AreaMember
	}
	return AreaPublic
}

// Holder stores the token the HTTP transport sends. It is safe for
// concurrent use.
type Holder struct {
	mu    sync.RWMutex
	token string
}

func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *Holder) Set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

// API is the subset of the escrow client used for authentication.
type API interface {
	Login(ctx context.Context, creds api.Credentials) (user.User, error)
	Signup(ctx context.Context, form api.Signup) error
	VerifyRole(ctx context.Context) (user.Role, error)
}

// Service performs login, signup and session restoration.
type Service struct {
	api    API
	holder *Holder
	now    func() time.Time
	log    *logger.Logger
}

// New creates an auth service. Tokens obtained at login are written to
// holder, which the transport reads.
func New(client API, holder *Holder, log *logger.Logger) *Service {
	if holder == nil {
		holder = &Holder{}
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{api: client, holder: holder, now: time.Now, log: log}
}

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges credentials for a session. The role claimed by the token
// is confirmed with the API before the session is returned.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validation.Struct(creds); err != nil {
		return nil, err
	}

	u, err := s.api.Login(ctx, api.Credentials{Email: creds.Email, Password: creds.Password})
	if err != nil {
		s.log.WithError(err).WithField("email", creds.Email).Warn("login failed")
		return nil, fmt.Errorf("login: %w", err)
	}
	if u.Token == "" {
		return nil, errors.Unauthorized("login returned no token")
	}

	sess, err := s.decode(u.Token)
	if err != nil {
		return nil, err
	}
	if sess.UserID == "" {
		sess.UserID = u.ID
	}

	s.holder.Set(u.Token)
	role, err := s.api.VerifyRole(ctx)
	if err != nil {
		s.holder.Set("")
		return nil, fmt.Errorf("verify role: %w", err)
	}
	if role != sess.Role {
		s.log.WithFields(map[string]interface{}{"token_role": sess.Role, "verified_role": role}).
			Warn("token role differs from verified role")
		sess.Role = role
	}

	s.log.WithField("user_id", sess.UserID).WithField("role", sess.Role).Info("logged in")
	return sess, nil
}

// Resume restores a session from a saved token. Expired tokens are refused
// without calling the API.
func (s *Service) Resume(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, errors.Unauthorized("not logged in")
	}
	sess, err := s.decode(token)
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		return nil, errors.Unauthorized("session expired, log in again")
	}
	s.holder.Set(token)
	if _, err := s.api.VerifyRole(ctx); err != nil {
		s.holder.Set("")
		return nil, fmt.Errorf("verify session: %w", err)
	}
	return sess, nil
}

// Logout forgets the current token.
func (s *Service) Logout() {
	s.holder.Set("")
}

func (s *Service) decode(token string) (*Session, error) {
	claims, err := tokens.Inspect(token)
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	name := strings.TrimSpace(claims.FirstName + " " + claims.LastName)
	return &Session{
		Token:     token,
		UserID:    claims.UID,
		Email:     claims.Email,
		Name:      name,
		Role:      user.Role(claims.UserType),
		ExpiresAt: claims.Expiry(),
	}, nil
}

// SignupForm is the registration form.
type SignupForm struct {
	Username        string `json:"username" validate:"required,min=5,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
	FirstName       string `json:"first_name" validate:"required,min=2,max=100"`
	LastName        string `json:"last_name" validate:"required,min=2,max=100"`
	Phone           string `json:"phone" validate:"required"`
}

// Signup registers a member account. Duplicate email and username are
// reported as field errors.
func (s *Service) Signup(ctx context.Context, form SignupForm) error {
	if err := validation.Struct(form); err != nil {
		return err
	}
	err := s.api.Signup(ctx, api.Signup{
		Username:  form.Username,
		Email:     form.Email,
		Password:  form.Password,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Phone:     form.Phone,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.CodeEmail):
		return errors.Validation(map[string]string{"email": "Email already exists"})
	case errors.Is(err, errors.CodeUsername):
		return errors.Validation(map[string]string{"username": "Username already exists"})
	}
	return fmt.Errorf("signup: %w", err)
}
