// Package products manages the catalogue a seller offers in transactions.
package products

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/file"
	"github.com/flexcrow/escrowctl/internal/app/domain/product"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/app/validation"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

// API is the subset of the escrow client used for products.
type API interface {
	ListProducts(ctx context.Context, opts api.ListOptions) (api.Page[product.Product], error)
	GetProduct(ctx context.Context, id string, viaTransaction bool) (product.Product, error)
	CreateProduct(ctx context.Context, form api.ProductForm) (string, error)
	UpdateProduct(ctx context.Context, id string, form api.ProductForm) error
	RemoveProduct(ctx context.Context, id string) error
	DeleteProduct(ctx context.Context, id string) error
	Upload(ctx context.Context, name, contentType string, r io.Reader) (file.Upload, error)
}

type Service struct {
	api API
	log *logger.Logger
}

func New(client API, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("products")
	}
	return &Service{api: client, log: log}
}

// Media is a file to upload with the product.
type Media struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Form is the product editor. Price is money text. Images and Video are
// uploaded before the product is saved; ImageIDs keeps files already stored.
type Form struct {
	Owner       string       `json:"user_id"`
	Name        string       `json:"name" validate:"required,min=2,max=100"`
	Type        product.Type `json:"type" validate:"oneof=1 2"`
	Description string       `json:"description" validate:"max=1000"`
	Price       string       `json:"price" validate:"required,money"`
	ImageIDs    []string     `json:"image_id"`
	VideoID     string       `json:"video_id"`
	Images      []Media      `json:"-"`
	Video       *Media       `json:"-"`
}

// Create validates and saves a new active product, returning its ID.
func (s *Service) Create(ctx context.Context, form Form) (string, error) {
	body, err := s.prepare(ctx, form)
	if err != nil {
		return "", err
	}
	body.Status = product.StatusActive
	id, err := s.api.CreateProduct(ctx, body)
	if err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}
	s.log.WithField("product_id", id).WithField("name", body.Name).Info("product created")
	return id, nil
}

// Update replaces a product's editable fields.
func (s *Service) Update(ctx context.Context, id string, form Form) error {
	current, err := s.api.GetProduct(ctx, id, false)
	if err != nil {
		return fmt.Errorf("load product %s: %w", id, err)
	}
	if form.ImageIDs == nil {
		form.ImageIDs = current.ImageIDs
	}
	if form.VideoID == "" && form.Video == nil {
		form.VideoID = current.VideoID
	}
	body, err := s.prepare(ctx, form)
	if err != nil {
		return err
	}
	body.Status = current.Status
	if err := s.api.UpdateProduct(ctx, id, body); err != nil {
		return fmt.Errorf("update product %s: %w", id, err)
	}
	s.log.WithField("product_id", id).Info("product updated")
	return nil
}

func (s *Service) prepare(ctx context.Context, form Form) (api.ProductForm, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Price = strings.TrimSpace(form.Price)
	if err := validation.Struct(form); err != nil {
		return api.ProductForm{}, err
	}
	price, _ := transaction.ParseMoney(form.Price)

	images := append([]string(nil), form.ImageIDs...)
	for _, m := range form.Images {
		up, err := s.api.Upload(ctx, m.Name, m.ContentType, m.Body)
		if err != nil {
			return api.ProductForm{}, fmt.Errorf("upload image %s: %w", m.Name, err)
		}
		images = append(images, up.ID)
	}
	video := form.VideoID
	if form.Video != nil {
		up, err := s.api.Upload(ctx, form.Video.Name, form.Video.ContentType, form.Video.Body)
		if err != nil {
			return api.ProductForm{}, fmt.Errorf("upload video %s: %w", form.Video.Name, err)
		}
		video = up.ID
	}

	body := api.ProductForm{
		Name:        form.Name,
		Type:        form.Type,
		Description: form.Description,
		Price:       price.InexactFloat64(),
		ImageIDs:    images,
		VideoID:     video,
	}
	if user.Role(logging.GetRole(ctx)) == user.RoleAdmin {
		body.UserID = form.Owner
	}
	return body, nil
}

// List returns the caller's products, or all products for admins when all
// is set.
func (s *Service) List(ctx context.Context, all bool, opts api.ListOptions) (api.Page[product.Product], error) {
	if !all || user.Role(logging.GetRole(ctx)) != user.RoleAdmin {
		opts.UserID = api.Current
	}
	return s.api.ListProducts(ctx, opts)
}

func (s *Service) Get(ctx context.Context, id string) (product.Product, error) {
	return s.api.GetProduct(ctx, id, false)
}

// Remove hides a product from listings; existing transactions keep it.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.api.RemoveProduct(ctx, id); err != nil {
		return fmt.Errorf("remove product %s: %w", id, err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.api.DeleteProduct(ctx, id)
}
