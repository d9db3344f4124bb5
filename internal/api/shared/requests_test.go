package shared

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Name string `json:"name" validate:"required"`
	Age  int    `json:"age"  validate:"omitempty,min=1,max=150"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		requestBody string
		wantErr     error
		errContains string
	}{
		{
			name:        "valid json",
			requestBody: `{"name": "test", "age": 30}`,
		},
		{
			name:        "invalid json",
			requestBody: `{"name": "test", "age": 30,}`, // trailing comma
			errContains: "invalid character",
		},
		{
			name:        "unknown field",
			requestBody: `{"name": "test", "extra": true}`,
			errContains: "unknown field",
		},
		{
			name:        "empty body",
			requestBody: "",
			wantErr:     ErrEmptyBody,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tc.requestBody))

			var target testPayload
			err := DecodeJSON(req, &target)

			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case tc.errContains != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errContains)
			default:
				require.NoError(t, err)
				assert.Equal(t, "test", target.Name)
				assert.Equal(t, 30, target.Age)
			}
		})
	}
}

func TestDecodeOptionalJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", http.NoBody)
	target := testPayload{Name: "kept"}
	require.NoError(t, DecodeOptionalJSON(req, &target))
	assert.Equal(t, "kept", target.Name)

	req = httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"name":`))
	assert.Error(t, DecodeOptionalJSON(req, &target))
}

type selfValidating struct {
	called bool
}

func (s *selfValidating) Validate() error {
	s.called = true
	return nil
}

func TestValidateRequest(t *testing.T) {
	err := ValidateRequest(testPayload{Name: "ok", Age: 20})
	assert.NoError(t, err)

	err = ValidateRequest(testPayload{Age: 200})
	require.Error(t, err)
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	assert.Len(t, validationErrs, 2)

	custom := &selfValidating{}
	require.NoError(t, ValidateRequest(custom))
	assert.True(t, custom.called)
}
