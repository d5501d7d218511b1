package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexcrow/escrowctl/pkg/testutil"
)

type harness struct {
	t       *testing.T
	fake    *testutil.FakeAPI
	m       testutil.Marketplace
	profile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	return &harness{
		t:       t,
		fake:    fake,
		m:       fake.Seed(),
		profile: filepath.Join(t.TempDir(), "config.yaml"),
	}
}

// run executes escrowctl against the fake and returns stdout, stderr and
// the exit code.
func (h *harness) run(args ...string) (string, string, int) {
	h.t.Helper()
	var out, errb bytes.Buffer
	full := append([]string{"--config", h.profile, "--api-url", h.fake.URL()}, args...)
	code := run(context.Background(), full, nil, &out, &errb)
	return out.String(), errb.String(), code
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, code := h.run(args...)
	if code != 0 {
		h.t.Fatalf("escrowctl %s: exit %d\nstderr: %s", strings.Join(args, " "), code, errOut)
	}
	return out
}

func (h *harness) login(email string) {
	h.t.Helper()
	h.mustRun("login", "--email", email, "--password", "secret123")
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	_, errOut, code := h.run("whoami")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "escrowctl login")

	h.login(h.m.Seller.Email)
	raw, err := os.ReadFile(h.profile)
	require.NoError(t, err)
	require.Contains(t, string(raw), "token:")

	out := h.mustRun("-o", "jsonpath=$.username", "whoami")
	require.Equal(t, "seller01\n", out)

	out = h.mustRun("whoami")
	require.Contains(t, out, "Sam Seller")
	require.Contains(t, out, "Balance:")

	h.mustRun("logout")
	_, _, code = h.run("whoami")
	require.Equal(t, 1, code)
}

func TestWrongPassword(t *testing.T) {
	h := newHarness(t)
	_, errOut, code := h.run("login", "--email", h.m.Buyer.Email, "--password", "nope123")
	require.Equal(t, 1, code)
	require.NotEmpty(t, errOut)
}

func TestDigitalOfferEndToEnd(t *testing.T) {
	h := newHarness(t)

	h.login(h.m.Seller.Email)
	id := strings.TrimSpace(h.mustRun("tx", "create", "--product", h.m.Digital.ID, "--buyer", "buyer01", "--qty", "2", "--fee", "split"))
	require.NotEmpty(t, id)

	h.login(h.m.Buyer.Email)
	out := h.mustRun("tx", "show", id)
	require.Contains(t, out, "◉ Offer")
	require.Contains(t, out, "accept, reject")
	require.Contains(t, out, "Preset pack x 2")
	require.Contains(t, out, "Progress:")

	h.mustRun("tx", "accept", id)

	var checkout struct {
		PaymentID   string `json:"payment_id"`
		CheckoutURL string `json:"checkout_url"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("-o", "json", "tx", "pay", id)), &checkout))
	require.NotEmpty(t, checkout.CheckoutURL)

	out = h.mustRun("tx", "return", testutil.CheckoutReturn(id, checkout.PaymentID, "success"))
	require.Contains(t, out, "Waiting for delivery")

	h.login(h.m.Seller.Email)
	_, errOut, code := h.run("tx", "verify", id)
	require.Equal(t, 1, code, "sellers cannot verify")
	require.NotEmpty(t, errOut)
	h.mustRun("tx", "deliver", "--details", "https://files.escrow.test/presets.zip", id)

	h.login(h.m.Buyer.Email)
	out = h.mustRun("tx", "verify", id)
	require.Contains(t, out, "● Done")

	seller, ok := h.fake.User(h.m.Seller.ID)
	require.True(t, ok)
	// 80 subtotal, 1.60 fee split evenly: the seller nets 79.20.
	require.InDelta(t, 129.2, seller.Balance, 0.001)
}

func TestValidationErrorsListFields(t *testing.T) {
	h := newHarness(t)
	h.login(h.m.Buyer.Email)

	_, errOut, code := h.run("withdrawal", "create", "--method", "paypal", "--account", "bea@escrow.test", "--amount", "100")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "  amount: ")

	_, errOut, code = h.run("tx", "show")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "usage: escrowctl tx show <id>")
}

func TestProductListing(t *testing.T) {
	h := newHarness(t)
	h.login(h.m.Seller.Email)

	out := h.mustRun("product", "list")
	require.True(t, strings.HasPrefix(out, "ID"))
	require.Contains(t, out, "Film camera")
	require.Contains(t, out, "digital")

	out = h.mustRun("-o", "jsonpath=$.items[*].name", "product", "list")
	names := strings.Split(strings.TrimSpace(out), "\n")
	require.ElementsMatch(t, []string{"Film camera", "Preset pack"}, names)

	id := strings.TrimSpace(h.mustRun("product", "create", "--name", "Lens cap", "--price", "12.5"))
	h.mustRun("product", "update", "--price", "15", id)
	out = h.mustRun("-o", "json", "product", "show", id)
	require.Contains(t, out, `"price": 15`)
	require.Contains(t, out, `"name": "Lens cap"`)
}

func TestDashboards(t *testing.T) {
	h := newHarness(t)
	h.login(h.m.Buyer.Email)

	var sum map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("-o", "json", "dashboard")), &sum))
	require.Equal(t, "1000", sum["balance"])
	require.EqualValues(t, 0, sum["purchases"])

	h.login(h.m.Admin.Email)
	out := h.mustRun("dashboard")
	require.Contains(t, out, "Users:")
	out = h.mustRun("user", "list")
	require.Contains(t, out, "buyer01")

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("-o", "json", "payment", "create",
		"--user", "buyer01", "--amount", "25", "--method", "transfer", "--status", "success")), &created))
	p, ok := h.fake.Payment(created.ID)
	require.True(t, ok)
	require.Equal(t, h.m.Buyer.ID, p.UserID)
	require.Equal(t, 25.0, p.Amount)
}

func TestStaticCommands(t *testing.T) {
	var out, errb bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"version"}, nil, &out, &errb))
	require.Equal(t, "escrowctl dev\n", out.String())

	out.Reset()
	require.Equal(t, 0, run(context.Background(), []string{"completion", "bash"}, nil, &out, &errb))
	require.Contains(t, out.String(), "complete -F _escrowctl_completion escrowctl")

	require.Equal(t, 2, run(context.Background(), []string{"completion"}, nil, &out, &errb))
	require.Equal(t, 2, run(context.Background(), []string{"frobnicate"}, nil, &out, &errb))
	require.Equal(t, 2, run(context.Background(), nil, nil, &out, &errb))
}

func TestCompletionInstall(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var out, errb bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"completion", "--install", "fish"}, nil, &out, &errb))
	script, err := os.ReadFile(filepath.Join(home, ".config", "fish", "completions", "escrowctl.fish"))
	require.NoError(t, err)
	require.Contains(t, string(script), "complete -c escrowctl")
}
