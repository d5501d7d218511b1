package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/flexcrow/escrowctl/internal/app/domain/address"
)

// AddressForm creates or replaces an address.
type AddressForm struct {
	UserID      string `json:"user_id,omitempty"`
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Status      int    `json:"status" validate:"oneof=1 2"`
	Type        int    `json:"type" validate:"oneof=1 2"`
	FullName    string `json:"full_name" validate:"required,min=2,max=100"`
	Phone       string `json:"phone" validate:"required"`
	Address1    string `json:"address_1" validate:"required,max=1000"`
	Address2    string `json:"address_2" validate:"max=1000"`
	Subdistrict string `json:"subdistrict" validate:"max=100"`
	District    string `json:"district" validate:"required,max=100"`
	Province    string `json:"province" validate:"required,max=100"`
	Country     string `json:"country" validate:"required,max=100"`
	PostalCode  string `json:"postal_code" validate:"required,max=100"`
}

func (c *Client) ListAddresses(ctx context.Context, opts ListOptions) (Page[address.Address], error) {
	raw, err := c.list(ctx, "/addresses", "address_items", opts.Query())
	if err != nil {
		return Page[address.Address]{}, err
	}
	return decodePage[address.Address](raw, "address_items")
}

// GetAddress reads an address; sellers shipping to a buyer pass viaTransaction.
func (c *Client) GetAddress(ctx context.Context, id string, viaTransaction bool) (address.Address, error) {
	var a address.Address
	path := "/addresses/" + escape(id)
	if viaTransaction {
		path = withQuery(path, url.Values{"transaction": {"true"}})
	}
	err := c.get(ctx, path, &a)
	return a, err
}

func (c *Client) CreateAddress(ctx context.Context, form AddressForm) (string, error) {
	return c.create(ctx, "/addresses", form)
}

func (c *Client) UpdateAddress(ctx context.Context, id string, form AddressForm) error {
	return c.call(ctx, http.MethodPut, "/addresses/"+escape(id), form, nil)
}

func (c *Client) RemoveAddress(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/addresses/remove/"+escape(id), nil, nil)
}

func (c *Client) DeleteAddress(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/addresses/"+escape(id), nil, nil)
}
