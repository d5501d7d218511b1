package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/flexcrow/escrowctl/internal/app/domain/product"
)

// ProductForm creates or replaces a product. UserID is only honoured for
// admins, who pass the owner's username.
type ProductForm struct {
	UserID      string       `json:"user_id,omitempty"`
	Name        string       `json:"name" validate:"required,min=2,max=100"`
	Status      int          `json:"status" validate:"oneof=1 2"`
	Type        product.Type `json:"type" validate:"oneof=1 2"`
	Description string       `json:"description" validate:"max=1000"`
	Price       float64      `json:"price" validate:"gt=0"`
	ImageIDs    []string     `json:"image_id"`
	VideoID     string       `json:"video_id"`
}

func (c *Client) ListProducts(ctx context.Context, opts ListOptions) (Page[product.Product], error) {
	raw, err := c.list(ctx, "/products", "product_items", opts.Query())
	if err != nil {
		return Page[product.Product]{}, err
	}
	return decodePage[product.Product](raw, "product_items")
}

// GetProduct reads a product. Counterparts of a transaction set
// viaTransaction to read a product they do not own.
func (c *Client) GetProduct(ctx context.Context, id string, viaTransaction bool) (product.Product, error) {
	var p product.Product
	path := "/products/" + escape(id)
	if viaTransaction {
		path = withQuery(path, url.Values{"transaction": {"true"}})
	}
	err := c.get(ctx, path, &p)
	return p, err
}

func (c *Client) CreateProduct(ctx context.Context, form ProductForm) (string, error) {
	return c.create(ctx, "/products", form)
}

func (c *Client) UpdateProduct(ctx context.Context, id string, form ProductForm) error {
	return c.call(ctx, http.MethodPut, "/products/"+escape(id), form, nil)
}

// RemoveProduct hides a product from listings without deleting it.
func (c *Client) RemoveProduct(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/products/remove/"+escape(id), nil, nil)
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/products/"+escape(id), nil, nil)
}
