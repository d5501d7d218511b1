// Package users covers profile maintenance for members and account
// administration for admins.
package users

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/file"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/app/validation"
	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

// API is the subset of the escrow client used for accounts.
type API interface {
	Me(ctx context.Context) (user.User, error)
	ListUsers(ctx context.Context, opts api.ListOptions) (api.Page[user.User], error)
	GetUser(ctx context.Context, id string) (user.User, error)
	CreateUser(ctx context.Context, form api.Signup) (string, error)
	UpdateUser(ctx context.Context, id string, patch api.UserPatch) error
	DeleteUser(ctx context.Context, id string) error
	ChangePassword(ctx context.Context, id, current, next string) error
	Upload(ctx context.Context, name, contentType string, r io.Reader) (file.Upload, error)
}

// Service manages user accounts.
type Service struct {
	api API
	log *logger.Logger
}

func New(client API, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{api: client, log: log}
}

// Me returns the caller's own record, including the balance.
func (s *Service) Me(ctx context.Context) (user.User, error) {
	return s.api.Me(ctx)
}

// ProfileForm edits profile fields. Nil fields are left unchanged.
type ProfileForm struct {
	Username  *string `json:"username" validate:"omitempty,min=5,max=50"`
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name" validate:"omitempty,min=2,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=2,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,min=1"`
	AddressID *string `json:"address_id"`

	// Avatar, when set, is uploaded and becomes the profile image.
	Avatar     io.Reader `json:"-"`
	AvatarName string    `json:"-"`
	AvatarType string    `json:"-"`
}

// UpdateProfile applies form to user id, or to the caller when id is empty.
func (s *Service) UpdateProfile(ctx context.Context, id string, form ProfileForm) error {
	if id == "" {
		id = logging.GetUserID(ctx)
	}
	if err := validation.Struct(form); err != nil {
		return err
	}

	patch := api.UserPatch{
		Username:  trimmed(form.Username),
		Email:     trimmed(form.Email),
		FirstName: trimmed(form.FirstName),
		LastName:  trimmed(form.LastName),
		Phone:     trimmed(form.Phone),
		AddressID: form.AddressID,
	}
	if form.Avatar != nil {
		up, err := s.api.Upload(ctx, form.AvatarName, form.AvatarType, form.Avatar)
		if err != nil {
			return fmt.Errorf("upload avatar: %w", err)
		}
		patch.ImageID = &up.ID
	}

	err := s.api.UpdateUser(ctx, id, patch)
	switch {
	case err == nil:
		s.log.WithField("user_id", id).Info("profile updated")
		return nil
	case errors.Is(err, errors.CodeEmail):
		return errors.Validation(map[string]string{"email": "Email already exists"})
	case errors.Is(err, errors.CodeUsername):
		return errors.Validation(map[string]string{"username": "Username already exists"})
	}
	return fmt.Errorf("update user %s: %w", id, err)
}

// PasswordForm is the change-password form.
type PasswordForm struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=6"`
	Confirm string `json:"confirm_password" validate:"eqfield=New"`
}

// ChangePassword updates the password of user id, or of the caller when id
// is empty.
func (s *Service) ChangePassword(ctx context.Context, id string, form PasswordForm) error {
	if id == "" {
		id = logging.GetUserID(ctx)
	}
	if err := validation.Struct(form); err != nil {
		return err
	}
	err := s.api.ChangePassword(ctx, id, form.Current, form.New)
	if errors.Is(err, errors.CodePassword) {
		return errors.Validation(map[string]string{"current_password": "Current password is incorrect"})
	}
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	s.log.WithField("user_id", id).Info("password changed")
	return nil
}

// AccountForm is the admin form for new accounts.
type AccountForm struct {
	Username  string    `json:"username" validate:"required,min=5,max=50"`
	Email     string    `json:"email" validate:"required,email"`
	Password  string    `json:"password" validate:"required,min=6"`
	FirstName string    `json:"first_name" validate:"required,min=2,max=100"`
	LastName  string    `json:"last_name" validate:"required,min=2,max=100"`
	Phone     string    `json:"phone" validate:"required"`
	Role      user.Role `json:"user_type" validate:"oneof=ADMIN USER"`
}

// Create adds an account of any role. Admin only.
func (s *Service) Create(ctx context.Context, form AccountForm) (string, error) {
	if form.Role == "" {
		form.Role = user.RoleUser
	}
	if err := validation.Struct(form); err != nil {
		return "", err
	}
	id, err := s.api.CreateUser(ctx, api.Signup{
		Username:  form.Username,
		Email:     form.Email,
		Password:  form.Password,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Phone:     form.Phone,
		Type:      form.Role,
		Status:    user.StatusActive,
	})
	switch {
	case err == nil:
		s.log.WithField("user_id", id).WithField("role", form.Role).Info("account created")
		return id, nil
	case errors.Is(err, errors.CodeEmail):
		return "", errors.Validation(map[string]string{"email": "Email already exists"})
	case errors.Is(err, errors.CodeUsername):
		return "", errors.Validation(map[string]string{"username": "Username already exists"})
	}
	return "", fmt.Errorf("create user: %w", err)
}

// SetStatus enables or disables an account. Admin only.
func (s *Service) SetStatus(ctx context.Context, id string, status int) error {
	if status != user.StatusActive && status != user.StatusDisabled {
		return errors.Validation(map[string]string{"status": "Status must be one of 1 2"})
	}
	return s.api.UpdateUser(ctx, id, api.UserPatch{Status: &status})
}

// SetRole changes an account's role. Admin only.
func (s *Service) SetRole(ctx context.Context, id string, role user.Role) error {
	if !role.Valid() {
		return errors.Validation(map[string]string{"user_type": "Role must be one of ADMIN USER"})
	}
	return s.api.UpdateUser(ctx, id, api.UserPatch{Type: &role})
}

func (s *Service) List(ctx context.Context, opts api.ListOptions) (api.Page[user.User], error) {
	return s.api.ListUsers(ctx, opts)
}

func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.api.GetUser(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.api.DeleteUser(ctx, id)
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
