package addresses

import (
	"context"
	"fmt"
	"strings"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/address"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/app/validation"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

// API is the subset of the escrow client used for addresses.
type API interface {
	ListAddresses(ctx context.Context, opts api.ListOptions) (api.Page[address.Address], error)
	GetAddress(ctx context.Context, id string, viaTransaction bool) (address.Address, error)
	CreateAddress(ctx context.Context, form api.AddressForm) (string, error)
	UpdateAddress(ctx context.Context, id string, form api.AddressForm) error
	RemoveAddress(ctx context.Context, id string) error
	DeleteAddress(ctx context.Context, id string) error
}

// Service manages a member's shipping addresses.
type Service struct {
	api API
	log *logger.Logger
}

func New(client API, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("addresses")
	}
	return &Service{api: client, log: log}
}

func normalize(form api.AddressForm) api.AddressForm {
	if form.Status == 0 {
		form.Status = address.StatusActive
	}
	if form.Type == 0 {
		form.Type = 1
	}
	if strings.TrimSpace(form.Name) == "" {
		form.Name = form.FullName
	}
	for _, f := range []*string{&form.Name, &form.FullName, &form.Phone, &form.Address1, &form.Address2,
		&form.Subdistrict, &form.District, &form.Province, &form.Country, &form.PostalCode} {
		*f = strings.TrimSpace(*f)
	}
	return form
}

// Create saves a new address for the caller and returns its ID.
func (s *Service) Create(ctx context.Context, form api.AddressForm) (string, error) {
	form = normalize(form)
	if err := validation.Struct(form); err != nil {
		return "", err
	}
	if user.Role(logging.GetRole(ctx)) != user.RoleAdmin {
		form.UserID = ""
	}
	id, err := s.api.CreateAddress(ctx, form)
	if err != nil {
		return "", fmt.Errorf("create address: %w", err)
	}
	s.log.WithField("address_id", id).Info("address created")
	return id, nil
}

func (s *Service) Update(ctx context.Context, id string, form api.AddressForm) error {
	form = normalize(form)
	if err := validation.Struct(form); err != nil {
		return err
	}
	form.UserID = ""
	if err := s.api.UpdateAddress(ctx, id, form); err != nil {
		return fmt.Errorf("update address %s: %w", id, err)
	}
	return nil
}

// List returns the caller's active addresses, or every address for admins
// when all is set.
func (s *Service) List(ctx context.Context, all bool, opts api.ListOptions) (api.Page[address.Address], error) {
	if !all || user.Role(logging.GetRole(ctx)) != user.RoleAdmin {
		opts.UserID = api.Current
	}
	return s.api.ListAddresses(ctx, opts)
}

func (s *Service) Get(ctx context.Context, id string) (address.Address, error) {
	return s.api.GetAddress(ctx, id, false)
}

// Remove retires an address without deleting it, so transactions that ship
// to it still resolve.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.api.RemoveAddress(ctx, id); err != nil {
		return fmt.Errorf("remove address %s: %w", id, err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.api.DeleteAddress(ctx, id)
}
