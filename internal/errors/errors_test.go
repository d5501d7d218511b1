package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestFromResponseKnownCodes(t *testing.T) {
	err := FromResponse(http.StatusBadRequest, []byte(`{"error":"customer_error"}`))
	if err.Code != CodeCustomer {
		t.Fatalf("code = %s, want %s", err.Code, CodeCustomer)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("status = %d", err.HTTPStatus)
	}
}

func TestFromResponseFreeText(t *testing.T) {
	tests := []struct {
		status int
		body   string
		code   ErrorCode
		msg    string
	}{
		{http.StatusNotFound, `{"error":"User not found"}`, CodeNotFound, "User not found"},
		{http.StatusUnauthorized, `{"error":"No Authorization header provided"}`, CodeUnauthorized, "No Authorization header provided"},
		{http.StatusInternalServerError, `oops`, CodeUpstream, "oops"},
		{http.StatusBadGateway, ``, CodeUpstream, "Bad Gateway"},
		{http.StatusBadRequest, `{"message":"insufficient balance"}`, CodeValidation, "insufficient balance"},
	}
	for _, tc := range tests {
		got := FromResponse(tc.status, []byte(tc.body))
		if got.Code != tc.code || got.Message != tc.msg {
			t.Errorf("FromResponse(%d, %q) = %s/%q, want %s/%q", tc.status, tc.body, got.Code, got.Message, tc.code, tc.msg)
		}
	}
}

func TestGetServiceErrorThroughWrap(t *testing.T) {
	base := NotFound("transaction", "tx-9")
	wrapped := fmt.Errorf("load view: %w", base)
	if got := GetServiceError(wrapped); got != base {
		t.Fatalf("GetServiceError returned %v", got)
	}
	if !IsNotFound(wrapped) {
		t.Fatal("IsNotFound should see through wrapping")
	}
	if Is(fmt.Errorf("plain"), CodeNotFound) {
		t.Fatal("plain error must not match")
	}
}

func TestValidationFields(t *testing.T) {
	err := Validation(map[string]string{"amount": "Amount is required"})
	if err.Message != "Amount is required" {
		t.Fatalf("single-field message = %q", err.Message)
	}
	if err.Fields()["amount"] != "Amount is required" {
		t.Fatalf("fields = %v", err.Fields())
	}

	multi := Validation(map[string]string{"a": "x", "b": "y"})
	if multi.Message != "invalid input" {
		t.Fatalf("multi-field message = %q", multi.Message)
	}
}

func TestInvalidStateDetails(t *testing.T) {
	err := InvalidState("verify", 3)
	if err.HTTPStatus != http.StatusConflict {
		t.Fatalf("status = %d", err.HTTPStatus)
	}
	if err.Details["step"] != 3 || err.Details["action"] != "verify" {
		t.Fatalf("details = %v", err.Details)
	}
}
