package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexcrow/escrowctl/pkg/logger"
)

func newTestEmailJS(t *testing.T, handler http.HandlerFunc) *EmailJS {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	n, err := NewEmailJS(EmailJSConfig{
		Endpoint:            server.URL + "/api/v1.0/email/send",
		ServiceID:           "service_x",
		PublicKey:           "pk_123",
		TemplateTransaction: "template_tx",
		TemplateHelp:        "template_help",
		ToEmail:             "ops@example.com",
		URLEmail:            "https://escrow.example.com",
	}, logger.Discard())
	require.NoError(t, err)
	return n
}

func TestEmailJSDispute(t *testing.T) {
	var got emailJSRequest
	n := newTestEmailJS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1.0/email/send" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte("OK"))
	})

	err := n.Notify(context.Background(), Notice{
		Kind:          KindDispute,
		TransactionID: "tx-1",
		Buyer:         Contact{Name: "buyer01", Email: "b@example.com"},
		Seller:        Contact{Name: "seller01", Email: "s@example.com"},
		Reason:        "item never arrived",
	})
	require.NoError(t, err)

	require.Equal(t, "service_x", got.ServiceID)
	require.Equal(t, "template_tx", got.TemplateID)
	require.Equal(t, "pk_123", got.UserID)
	require.Equal(t, "Transaction Disputed", got.TemplateParams["title"])
	require.Equal(t, "item never arrived", got.TemplateParams["reason"])
	require.Equal(t, "seller01", got.TemplateParams["seller_name"])
	require.Equal(t, "ops@example.com", got.TemplateParams["to_email"])
	require.NotContains(t, got.TemplateParams, "message")
}

func TestEmailJSHelpUsesHelpTemplate(t *testing.T) {
	var got emailJSRequest
	n := newTestEmailJS(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte("OK"))
	})

	require.NoError(t, n.Notify(context.Background(), Notice{
		Kind:          KindHelp,
		TransactionID: "tx-2",
		RequestBy:     "Seller",
		Reason:        "buyer is unresponsive",
	}))
	require.Equal(t, "template_help", got.TemplateID)
	require.Equal(t, "Seller", got.TemplateParams["request_by"])
	require.Equal(t, "buyer is unresponsive", got.TemplateParams["message"])
	require.NotContains(t, got.TemplateParams, "title")
}

func TestEmailJSFailure(t *testing.T) {
	n := newTestEmailJS(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "The public key is invalid", http.StatusBadRequest)
	})
	err := n.Notify(context.Background(), Notice{Kind: KindCancel, TransactionID: "tx-3"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "cancel")
}

func TestCancelDescriptionNamesRequester(t *testing.T) {
	d := Notice{Kind: KindCancel, RequestBy: "Seller"}.Description()
	if !strings.Contains(d, "by seller") {
		t.Fatalf("description = %q", d)
	}
}

func TestNewEmailJSRequiresAccount(t *testing.T) {
	if _, err := NewEmailJS(EmailJSConfig{ServiceID: "s"}, nil); err == nil {
		t.Fatal("expected error for incomplete config")
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(logger.Discard()).Notify(context.Background(), Notice{Kind: KindHelp}); err != nil {
		t.Fatalf("notify: %v", err)
	}
}
