package address

import (
	"strings"
	"time"
)

const (
	StatusActive  = 1
	StatusRemoved = 2
)

// Address is a shipping address owned by a member.
type Address struct {
	ID          string    `json:"address_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Status      int       `json:"status"`
	Type        int       `json:"type"`
	FullName    string    `json:"full_name"`
	Phone       string    `json:"phone"`
	Address1    string    `json:"address_1"`
	Address2    string    `json:"address_2"`
	Subdistrict string    `json:"subdistrict"`
	District    string    `json:"district"`
	Province    string    `json:"province"`
	Country     string    `json:"country"`
	PostalCode  string    `json:"postal_code"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Lines renders the address for display, skipping empty parts.
func (a Address) Lines() []string {
	var lines []string
	add := func(parts ...string) {
		var kept []string
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				kept = append(kept, p)
			}
		}
		if len(kept) > 0 {
			lines = append(lines, strings.Join(kept, ", "))
		}
	}
	add(a.FullName, a.Phone)
	add(a.Address1)
	add(a.Address2)
	add(a.Subdistrict, a.District)
	add(a.Province, a.PostalCode)
	add(a.Country)
	return lines
}
