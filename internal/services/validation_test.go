package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tipRequest struct {
	Recipient string `validate:"required,min=2"`
	Amount    int64  `validate:"required,gt=0"`
	Currency  string `validate:"omitempty,alpha,len=4"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&tipRequest{Recipient: "bob", Amount: 100, Currency: "USDT"})
		assert.NoError(t, err)
	})

	t.Run("missing and out of range fields", func(t *testing.T) {
		err := vh.ValidateStruct(&tipRequest{Recipient: "b", Amount: -1})
		require.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		require.True(t, ok)
		assert.Len(t, validationErrors, 2)
	})

	t.Run("bad currency", func(t *testing.T) {
		err := vh.ValidateStruct(&tipRequest{Recipient: "bob", Amount: 1, Currency: "US1"})
		require.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		require.True(t, ok)
		assert.Equal(t, "Currency", validationErrors[0].Field())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("wrapped validation errors are detailed", func(t *testing.T) {
		validationErr := NewValidationHelper().ValidateStruct(&tipRequest{Recipient: "b"})
		require.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, fmt.Errorf("decode: %w", validationErr))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Contains(t, response.Details, "Recipient")
		assert.Contains(t, response.Details, "Amount")
	})
}

func TestSendServiceError(t *testing.T) {
	w := httptest.NewRecorder()
	SendServiceError(w, fmt.Errorf("debit user:alice: %w", ErrInsufficientFunds))

	assert.Equal(t, http.StatusConflict, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "insufficient balance", response.Error)
	assert.NotContains(t, w.Body.String(), "alice")
}
