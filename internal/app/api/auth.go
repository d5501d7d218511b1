package api

import (
	"context"
	"net/http"

	"github.com/flexcrow/escrowctl/internal/app/domain/user"
)

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup is the registration form. New accounts are members with status 1.
type Signup struct {
	Username  string    `json:"username" validate:"required,min=5,max=50"`
	Email     string    `json:"email" validate:"required,email"`
	Password  string    `json:"password" validate:"required,min=6"`
	FirstName string    `json:"first_name" validate:"required,min=2,max=100"`
	LastName  string    `json:"last_name" validate:"required,min=2,max=100"`
	Phone     string    `json:"phone" validate:"required"`
	Type      user.Role `json:"user_type"`
	Status    int       `json:"status"`
}

// Login exchanges credentials for the user record, which carries the token.
func (c *Client) Login(ctx context.Context, creds Credentials) (user.User, error) {
	var u user.User
	err := c.call(ctx, http.MethodPost, "/users/login", creds, &u)
	return u, err
}

// Signup registers a new member account.
func (c *Client) Signup(ctx context.Context, form Signup) error {
	if form.Type == "" {
		form.Type = user.RoleUser
	}
	if form.Status == 0 {
		form.Status = user.StatusActive
	}
	return c.call(ctx, http.MethodPost, "/users/signup", form, nil)
}

// VerifyRole asks the API which role the current token carries.
func (c *Client) VerifyRole(ctx context.Context) (user.Role, error) {
	var out struct {
		UserType user.Role `json:"user_type"`
	}
	if err := c.get(ctx, "/auth/verify", &out); err != nil {
		return "", err
	}
	return out.UserType, nil
}

// Me returns the authenticated user's own record.
func (c *Client) Me(ctx context.Context) (user.User, error) {
	var u user.User
	err := c.get(ctx, "/auth/data", &u)
	return u, err
}
