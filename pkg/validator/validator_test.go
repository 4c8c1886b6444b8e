package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerForm struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Role        string `json:"role" validate:"omitempty,oneof=admin teacher student"`
}

func TestValidate_Success(t *testing.T) {
	form := registerForm{
		Email:       "ada@example.com",
		Password:    "Sup3rSecret",
		DisplayName: "Ada",
		Role:        "teacher",
	}
	assert.NoError(t, Validate(form))
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	form := registerForm{
		Email:    "not-an-email",
		Password: "short",
		Role:     "superuser",
	}
	err := Validate(form)
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	fields := vErr.Fields()
	assert.Equal(t, "must be a valid email address", fields["Email"])
	assert.Equal(t, "must be at least 8 characters", fields["Password"])
	assert.Equal(t, "is required", fields["DisplayName"])
	assert.Equal(t, "must be one of: admin teacher student", fields["Role"])
	assert.Contains(t, vErr.Error(), "field 'Email'")
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"email":"ada@example.com","password":"Sup3rSecret","display_name":"Ada"}`
	req := httptest.NewRequest("POST", "/register", strings.NewReader(body))

	var form registerForm
	require.NoError(t, DecodeAndValidate(req, &form))
	assert.Equal(t, "ada@example.com", form.Email)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/register", strings.NewReader("{not json"))

	var form registerForm
	err := DecodeAndValidate(req, &form)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_ValidJSONFailsValidation(t *testing.T) {
	req := httptest.NewRequest("POST", "/register", strings.NewReader(`{"email":"ada@example.com"}`))

	var form registerForm
	err := DecodeAndValidate(req, &form)
	require.Error(t, err)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}
