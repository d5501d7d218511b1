// Package notify delivers dispute, cancellation and help notices to the
// escrow operators.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flexcrow/escrowctl/internal/httputil"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

// Kind selects the message template.
type Kind string

const (
	KindDispute Kind = "dispute"
	KindCancel  Kind = "cancel"
	KindHelp    Kind = "help"
)

// Contact identifies one party of a transaction.
type Contact struct {
	Name  string
	Email string
}

// Notice is a message about one transaction.
type Notice struct {
	Kind          Kind
	TransactionID string
	Buyer         Contact
	Seller        Contact
	// RequestBy is "Buyer" or "Seller" for cancel and help notices.
	RequestBy string
	// Reason carries the dispute or cancel reason, or the help message.
	Reason string
}

// Title returns the subject line used for transaction templates.
func (n Notice) Title() string {
	switch n.Kind {
	case KindDispute:
		return "Transaction Disputed"
	case KindCancel:
		return "Transaction Cancellation"
	}
	return "Transaction Support"
}

// Description returns the body text shown above the transaction details.
func (n Notice) Description() string {
	switch n.Kind {
	case KindDispute:
		return "The transaction has been disputed and requires your attention. Please review the details below and take appropriate action."
	case KindCancel:
		by := strings.ToLower(n.RequestBy)
		if by == "" {
			by = "buyer"
		}
		return fmt.Sprintf("The transaction has been requested for cancellation by %s and requires your attention. Please review the details below and take appropriate action.", by)
	}
	return ""
}

// Notifier sends notices.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// EmailJSConfig holds the account and templates.
type EmailJSConfig struct {
	Endpoint            string
	ServiceID           string
	PublicKey           string
	TemplateTransaction string
	TemplateHelp        string
	ToEmail             string
	URLEmail            string
	Timeout             time.Duration
	Transport           http.RoundTripper
}

// EmailJS sends notices through the EmailJS REST endpoint.
type EmailJS struct {
	cfg    EmailJSConfig
	client *httputil.Client
	log    *logger.Logger
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// NewEmailJS builds the notifier. Retries are disabled since sends are POSTs.
func NewEmailJS(cfg EmailJSConfig, log *logger.Logger) (*EmailJS, error) {
	if cfg.ServiceID == "" || cfg.PublicKey == "" || cfg.TemplateTransaction == "" {
		return nil, fmt.Errorf("emailjs: service id, public key and transaction template are required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.emailjs.com/api/v1.0/email/send"
	}
	if cfg.TemplateHelp == "" {
		cfg.TemplateHelp = cfg.TemplateTransaction
	}
	if log == nil {
		log = logger.NewDefault("notify")
	}
	client := httputil.NewClient(httputil.ClientConfig{
		BaseURL:    cfg.Endpoint,
		Timeout:    cfg.Timeout,
		MaxRetries: -1,
		Transport:  cfg.Transport,
		Logger:     log,
	})
	return &EmailJS{cfg: cfg, client: client, log: log}, nil
}

// Params returns the template parameters for a notice.
func (e *EmailJS) Params(n Notice) map[string]string {
	params := map[string]string{
		"to_email":       e.cfg.ToEmail,
		"url_email":      e.cfg.URLEmail,
		"transaction_id": n.TransactionID,
		"buyer_name":     n.Buyer.Name,
		"buyer_email":    n.Buyer.Email,
		"seller_name":    n.Seller.Name,
		"seller_email":   n.Seller.Email,
	}
	if n.Kind == KindHelp {
		params["request_by"] = n.RequestBy
		params["message"] = n.Reason
		return params
	}
	params["reason"] = n.Reason
	params["title"] = n.Title()
	params["description"] = n.Description()
	return params
}

func (e *EmailJS) Notify(ctx context.Context, n Notice) error {
	template := e.cfg.TemplateTransaction
	if n.Kind == KindHelp {
		template = e.cfg.TemplateHelp
	}

	resp, err := e.client.Post(ctx, "", emailJSRequest{
		ServiceID:      e.cfg.ServiceID,
		TemplateID:     template,
		UserID:         e.cfg.PublicKey,
		TemplateParams: e.Params(n),
	})
	if err != nil {
		return fmt.Errorf("send %s notice: %w", n.Kind, err)
	}
	var body []byte
	if err := httputil.DecodeResponse(resp, &body); err != nil {
		return fmt.Errorf("send %s notice: %w", n.Kind, err)
	}
	e.log.WithFields(map[string]interface{}{
		"kind":           n.Kind,
		"transaction_id": n.TransactionID,
	}).Info("notice sent")
	return nil
}

// LogNotifier writes notices to the log. It stands in when EmailJS is not configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notice) error {
	l.log.WithFields(map[string]interface{}{
		"kind":           n.Kind,
		"transaction_id": n.TransactionID,
		"request_by":     n.RequestBy,
		"reason":         n.Reason,
	}).Warn("email notifications not configured; notice logged only")
	return nil
}
