package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/validation"
)

type testRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(testRequest{
		Email:    "owner@example.com",
		Password: "password123",
		Color:    "#1d9bf0",
	})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name       string
		req        testRequest
		wantErrMsg string
	}{
		{
			name:       "missing email",
			req:        testRequest{Password: "password123"},
			wantErrMsg: "email",
		},
		{
			name:       "invalid email",
			req:        testRequest{Email: "not-an-email", Password: "password123"},
			wantErrMsg: "email",
		},
		{
			name:       "password too short",
			req:        testRequest{Email: "owner@example.com", Password: "short"},
			wantErrMsg: "password",
		},
		{
			name:       "bad color",
			req:        testRequest{Email: "owner@example.com", Password: "password123", Color: "blue"},
			wantErrMsg: "color",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			assert.Error(t, err)

			var domainErr *errors.Error
			if assert.True(t, errors.As(err, &domainErr)) {
				assert.Equal(t, http.StatusBadRequest, domainErr.Code.HTTPStatus())
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			}
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(testRequest{Password: "password123"})
	assert.Error(t, err)

	// Should use the JSON tag name "email", not the field name "Email"
	assert.Contains(t, err.Error(), "email")
	assert.NotContains(t, err.Error(), "Email")
}
