package products

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/product"
	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/pkg/logger"
	"github.com/flexcrow/escrowctl/pkg/testutil"
)

func TestCreateUploadsMediaFirst(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	svc := New(fake.Client(m.Seller), logger.Discard())
	ctx := testutil.Context(m.Seller)

	id, err := svc.Create(ctx, Form{
		Name:   "Lens kit",
		Type:   product.TypePhysical,
		Price:  "89.90",
		Images: []Media{{Name: "front.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg")}},
		Video:  &Media{Name: "demo.mp4", ContentType: "video/mp4", Body: strings.NewReader("mp4")},
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 89.9, got.Price)
	require.Len(t, got.ImageIDs, 1)
	require.NotEmpty(t, got.VideoID)
	require.Equal(t, product.StatusActive, got.Status)
	require.Equal(t, m.Seller.ID, got.UserID)

	reqs := fake.Requests()
	var uploads, creates int
	for i, r := range reqs {
		switch r {
		case "POST /upload":
			uploads++
		case "POST /products":
			creates++
			require.Equal(t, 2, uploads, "uploads must precede the create (request %d)", i)
		}
	}
	require.Equal(t, 1, creates)
}

func TestCreateValidation(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	svc := New(fake.Client(m.Seller), logger.Discard())

	_, err := svc.Create(testutil.Context(m.Seller), Form{
		Name:        "x",
		Type:        4,
		Description: strings.Repeat("d", product.MaxDescription+1),
		Price:       "12.345",
		Images:      []Media{{Name: "never.jpg", Body: strings.NewReader("")}},
	})
	fields := errors.GetServiceError(err).Fields()
	require.Equal(t, "Name must be at least 2 characters", fields["name"])
	require.Equal(t, "Invalid price format", fields["price"])
	require.Contains(t, fields, "type")
	require.Contains(t, fields, "description")
	require.False(t, fake.Called(http.MethodPost, "/upload"))
}

func TestUpdateKeepsMediaAndStatus(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	svc := New(fake.Client(m.Seller), logger.Discard())
	ctx := testutil.Context(m.Seller)

	err := svc.Update(ctx, m.Physical.ID, Form{Name: "Film camera (mint)", Type: product.TypePhysical, Price: "175"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, m.Physical.ID)
	require.NoError(t, err)
	require.Equal(t, "Film camera (mint)", got.Name)
	require.Equal(t, 175.0, got.Price)
	require.Equal(t, m.Physical.ImageIDs, got.ImageIDs)
}

func TestListRemoveDelete(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	fake.AddProduct(product.Product{UserID: m.Buyer.ID, Name: "Old phone", Type: product.TypePhysical, Price: 20})

	seller := New(fake.Client(m.Seller), logger.Discard())
	sctx := testutil.Context(m.Seller)
	page, err := seller.List(sctx, true, api.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalCount)

	require.NoError(t, seller.Remove(sctx, m.Digital.ID))
	_, err = seller.Get(sctx, m.Digital.ID)
	require.True(t, errors.Is(err, errors.CodeForbidden), "removed products are hidden: %v", err)

	admin := New(fake.Client(m.Admin), logger.Discard())
	actx := testutil.Context(m.Admin)
	page, err = admin.List(actx, true, api.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalCount)

	require.NoError(t, admin.Delete(actx, m.Digital.ID))
	page, err = admin.List(actx, true, api.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalCount)
}
