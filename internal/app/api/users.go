package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/flexcrow/escrowctl/internal/app/domain/user"
)

// UserPatch is a partial user update; nil fields are left untouched.
type UserPatch struct {
	Username  *string    `json:"username,omitempty"`
	Email     *string    `json:"email,omitempty"`
	Password  *string    `json:"password,omitempty"`
	Type      *user.Role `json:"user_type,omitempty"`
	Status    *int       `json:"status,omitempty"`
	FirstName *string    `json:"first_name,omitempty"`
	LastName  *string    `json:"last_name,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Balance   *float64   `json:"balance,omitempty"`
	ImageID   *string    `json:"image_id,omitempty"`
	AddressID *string    `json:"address_id,omitempty"`
}

func (c *Client) ListUsers(ctx context.Context, opts ListOptions) (Page[user.User], error) {
	raw, err := c.list(ctx, "/users", "user_items", opts.Query())
	if err != nil {
		return Page[user.User]{}, err
	}
	return decodePage[user.User](raw, "user_items")
}

func (c *Client) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := c.get(ctx, "/users/"+escape(id), &u)
	return u, err
}

// CreateUser is the admin form; it accepts any role.
func (c *Client) CreateUser(ctx context.Context, form Signup) (string, error) {
	return c.create(ctx, "/users", form)
}

func (c *Client) UpdateUser(ctx context.Context, id string, patch UserPatch) error {
	return c.call(ctx, http.MethodPut, "/users/"+escape(id), patch, nil)
}

// SetBalance writes another member's balance during settlement. The
// transaction flag lets a buyer credit the seller.
func (c *Client) SetBalance(ctx context.Context, id string, balance float64) error {
	q := url.Values{"transaction": {"true"}}
	return c.call(ctx, http.MethodPut, withQuery("/users/"+escape(id), q), UserPatch{Balance: &balance}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/users/"+escape(id), nil, nil)
}

// Profile returns the public view of any user, used to show counterparts.
func (c *Client) Profile(ctx context.Context, id string) (user.Profile, error) {
	var p user.Profile
	err := c.get(ctx, withQuery("/users/username", url.Values{"user_id": {id}}), &p)
	return p, err
}

// ChangePassword updates the caller's password.
func (c *Client) ChangePassword(ctx context.Context, id, current, next string) error {
	body := map[string]string{"current_password": current, "new_password": next}
	return c.call(ctx, http.MethodPut, "/users/"+escape(id)+"/password", body, nil)
}
