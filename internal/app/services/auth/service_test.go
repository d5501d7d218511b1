package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/internal/httputil"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
	"github.com/flexcrow/escrowctl/pkg/testutil"
)

func newService(t *testing.T) (*Service, *testutil.FakeAPI, testutil.Marketplace) {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	holder := &Holder{}
	client := api.New(httputil.NewClient(httputil.ClientConfig{
		BaseURL:    fake.URL(),
		MaxRetries: -1,
		Token:      holder.Token,
		Logger:     logger.Discard(),
	}))
	return New(client, holder, logger.Discard()), fake, m
}

func TestLoginBuildsSession(t *testing.T) {
	svc, _, m := newService(t)

	sess, err := svc.Login(context.Background(), Credentials{Email: " buyer@escrow.test ", Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, m.Buyer.ID, sess.UserID)
	require.Equal(t, user.RoleUser, sess.Role)
	require.Equal(t, "Bea Buyer", sess.Name)
	require.False(t, sess.Expired(time.Now()))
	require.Equal(t, sess.Token, svc.holder.Token())
	require.Equal(t, AreaMember, AreaFor(sess))

	ctx := sess.Context(context.Background())
	require.Equal(t, m.Buyer.ID, logging.GetUserID(ctx))
	require.Equal(t, "USER", logging.GetRole(ctx))
}

func TestLoginAdminArea(t *testing.T) {
	svc, _, _ := newService(t)
	sess, err := svc.Login(context.Background(), Credentials{Email: "admin@escrow.test", Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, AreaAdmin, AreaFor(sess))
	require.Equal(t, AreaPublic, AreaFor(nil))
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Login(context.Background(), Credentials{Email: "buyer@escrow.test", Password: "nope"})
	require.Error(t, err)
	require.Empty(t, svc.holder.Token())
}

func TestLoginValidatesForm(t *testing.T) {
	svc, fake, _ := newService(t)
	_, err := svc.Login(context.Background(), Credentials{Email: "not-an-email"})
	se := errors.GetServiceError(err)
	require.NotNil(t, se)
	require.Contains(t, se.Fields(), "email")
	require.Contains(t, se.Fields(), "password")
	require.False(t, fake.Called(http.MethodPost, "/users/login"))
}

func TestLoginVerifyFailureClearsToken(t *testing.T) {
	svc, fake, _ := newService(t)
	fake.FailNext(http.MethodGet, "/auth/verify", http.StatusUnauthorized, "token expired")

	_, err := svc.Login(context.Background(), Credentials{Email: "seller@escrow.test", Password: "secret123"})
	require.Error(t, err)
	require.Empty(t, svc.holder.Token())
}

func TestResume(t *testing.T) {
	svc, _, m := newService(t)

	sess, err := svc.Resume(context.Background(), m.Seller.Token)
	require.NoError(t, err)
	require.Equal(t, m.Seller.ID, sess.UserID)

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err = svc.Resume(context.Background(), m.Seller.Token)
	require.True(t, errors.Is(err, errors.CodeUnauthorized))

	_, err = svc.Resume(context.Background(), "")
	require.Error(t, err)

	svc.Logout()
	require.Empty(t, svc.holder.Token())
}

func TestSignup(t *testing.T) {
	svc, fake, _ := newService(t)
	form := SignupForm{
		Username:        "newbie01",
		Email:           "newbie@escrow.test",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
		FirstName:       "New",
		LastName:        "Member",
		Phone:           "0899999999",
	}
	require.NoError(t, svc.Signup(context.Background(), form))

	err := svc.Signup(context.Background(), form)
	require.Equal(t, map[string]string{"email": "Email already exists"}, errors.GetServiceError(err).Fields())

	form.Email = "other@escrow.test"
	err = svc.Signup(context.Background(), form)
	require.Equal(t, map[string]string{"username": "Username already exists"}, errors.GetServiceError(err).Fields())

	before := len(fake.Requests())
	form.ConfirmPassword = "different"
	form.Username = "abc"
	err = svc.Signup(context.Background(), form)
	fields := errors.GetServiceError(err).Fields()
	require.Equal(t, "Confirm password does not match", fields["confirm_password"])
	require.Equal(t, "Username must be at least 5 characters", fields["username"])
	require.Len(t, fake.Requests(), before)
}

func TestSessionExpiry(t *testing.T) {
	now := time.Now()
	require.False(t, Session{}.Expired(now))
	require.True(t, Session{ExpiresAt: now}.Expired(now))
	require.False(t, Session{ExpiresAt: now.Add(time.Second)}.Expired(now))
}
