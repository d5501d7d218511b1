package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexcrow/escrowctl/internal/errors"
)

type sampleForm struct {
	Username string `json:"username" validate:"required,min=5,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Amount   string `json:"amount" validate:"required,money,minmoney=100"`
	Type     int    `json:"type" validate:"oneof=1 2"`
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	err := Struct(sampleForm{Username: "abc", Email: "nope", Amount: "01", Type: 3})
	se := errors.GetServiceError(err)
	require.NotNil(t, se)
	require.Equal(t, errors.CodeValidation, se.Code)

	fields := se.Fields()
	require.Equal(t, "Username must be at least 5 characters", fields["username"])
	require.Equal(t, "Email must be a valid email address", fields["email"])
	require.Equal(t, "Invalid amount format", fields["amount"])
	require.Equal(t, "Type must be one of 1 2", fields["type"])
}

func TestMinMoney(t *testing.T) {
	err := Struct(sampleForm{Username: "buyer1", Email: "b@example.com", Amount: "99.99", Type: 1})
	require.Equal(t, "Amount must be at least 100", errors.GetServiceError(err).Fields()["amount"])

	require.NoError(t, Struct(sampleForm{Username: "buyer1", Email: "b@example.com", Amount: "100", Type: 2}))
}

func TestMerge(t *testing.T) {
	require.NoError(t, Merge(nil, nil))

	err := Merge(nil, map[string]string{"amount": "Amount exceeds your available balance"})
	require.Equal(t, "Amount exceeds your available balance", errors.GetServiceError(err).Fields()["amount"])

	base := errors.Validation(map[string]string{"method": "Method is required"})
	merged := errors.GetServiceError(Merge(base, map[string]string{"method": "other", "account": "Account is required"}))
	require.Equal(t, "Method is required", merged.Fields()["method"])
	require.Equal(t, "Account is required", merged.Fields()["account"])
}
