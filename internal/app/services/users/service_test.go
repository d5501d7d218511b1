package users

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/pkg/logger"
	"github.com/flexcrow/escrowctl/pkg/testutil"
)

func ptr(s string) *string { return &s }

func TestUpdateProfileDefaultsToCaller(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	svc := New(fake.Client(m.Buyer), logger.Discard())

	err := svc.UpdateProfile(testutil.Context(m.Buyer), "", ProfileForm{
		FirstName:  ptr(" Beatrice "),
		Avatar:     strings.NewReader("png"),
		AvatarName: "me.png",
		AvatarType: "image/png",
	})
	require.NoError(t, err)

	got, ok := fake.User(m.Buyer.ID)
	require.True(t, ok)
	require.Equal(t, "Beatrice", got.FirstName)
	require.Equal(t, "Buyer", got.LastName)
	require.NotEmpty(t, got.ImageID)
}

func TestUpdateProfileDuplicates(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	svc := New(fake.Client(m.Buyer), logger.Discard())
	ctx := testutil.Context(m.Buyer)

	err := svc.UpdateProfile(ctx, "", ProfileForm{Email: ptr(m.Seller.Email)})
	require.Equal(t, "Email already exists", errors.GetServiceError(err).Fields()["email"])

	err = svc.UpdateProfile(ctx, "", ProfileForm{Username: ptr(m.Seller.Username)})
	require.Equal(t, "Username already exists", errors.GetServiceError(err).Fields()["username"])

	err = svc.UpdateProfile(ctx, "", ProfileForm{Username: ptr("abc")})
	require.Equal(t, "Username must be at least 5 characters", errors.GetServiceError(err).Fields()["username"])
}

func TestChangePassword(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	svc := New(fake.Client(m.Buyer), logger.Discard())
	ctx := testutil.Context(m.Buyer)

	err := svc.ChangePassword(ctx, "", PasswordForm{Current: "wrong-one", New: "fresh-pass", Confirm: "fresh-pass"})
	require.Equal(t, "Current password is incorrect", errors.GetServiceError(err).Fields()["current_password"])

	err = svc.ChangePassword(ctx, "", PasswordForm{Current: "secret123", New: "short", Confirm: "short"})
	require.Equal(t, "New password must be at least 6 characters", errors.GetServiceError(err).Fields()["new_password"])

	err = svc.ChangePassword(ctx, "", PasswordForm{Current: "secret123", New: "fresh-pass", Confirm: "fresh-pas"})
	require.Equal(t, "Confirm password does not match", errors.GetServiceError(err).Fields()["confirm_password"])

	require.NoError(t, svc.ChangePassword(ctx, "", PasswordForm{Current: "secret123", New: "fresh-pass", Confirm: "fresh-pass"}))

	_, err = fake.Client(m.Buyer).Login(ctx, api.Credentials{Email: m.Buyer.Email, Password: "fresh-pass"})
	require.NoError(t, err)
}

func TestAdminAccounts(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	svc := New(fake.Client(m.Admin), logger.Discard())
	ctx := testutil.Context(m.Admin)

	id, err := svc.Create(ctx, AccountForm{
		Username:  "support01",
		Email:     "support@escrow.test",
		Password:  "secret123",
		FirstName: "Sue",
		LastName:  "Support",
		Phone:     "0833333333",
		Role:      user.RoleAdmin,
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, user.RoleAdmin, got.Type)

	_, err = svc.Create(ctx, AccountForm{
		Username: "support02", Email: "support@escrow.test", Password: "secret123",
		FirstName: "Sue", LastName: "Support", Phone: "0833333333",
	})
	require.Equal(t, "Email already exists", errors.GetServiceError(err).Fields()["email"])

	require.NoError(t, svc.SetStatus(ctx, m.Seller.ID, user.StatusDisabled))
	seller, _ := fake.User(m.Seller.ID)
	require.Equal(t, user.StatusDisabled, seller.Status)
	require.True(t, errors.Is(svc.SetStatus(ctx, m.Seller.ID, 9), errors.CodeValidation))

	require.NoError(t, svc.SetRole(ctx, m.Buyer.ID, user.RoleAdmin))
	require.True(t, errors.Is(svc.SetRole(ctx, m.Buyer.ID, "ROOT"), errors.CodeValidation))

	page, err := svc.List(ctx, api.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, page.TotalCount)

	require.NoError(t, svc.Delete(ctx, id))
	_, err = svc.Get(ctx, id)
	require.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)
}

func TestMemberCannotAdminister(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	svc := New(fake.Client(m.Buyer), logger.Discard())

	_, err := svc.List(testutil.Context(m.Buyer), api.ListOptions{})
	require.Error(t, err)
}
