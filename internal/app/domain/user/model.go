package user

import "time"

// Role is the user_type carried in tokens and user records.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// Status values for user records.
const (
	StatusActive   = 1
	StatusDisabled = 2
)

// User is a member or administrator account. Balance holds the funds the
// member may withdraw.
type User struct {
	ID        string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	Type      Role      `json:"user_type"`
	Status    int       `json:"status"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Balance   float64   `json:"balance"`
	ImageID   string    `json:"image_id"`
	AddressID string    `json:"address_id"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Profile is the public view returned by /users/username.
type Profile struct {
	ID        string  `json:"user_id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Type      Role    `json:"user_type"`
	Phone     string  `json:"phone"`
	Balance   float64 `json:"balance"`
	ImageID   string  `json:"image_id"`
}
