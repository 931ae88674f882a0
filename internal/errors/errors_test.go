package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorMarshalsWithoutCause(t *testing.T) {
	appErr := NewValidationError("applicant id is required")

	data, err := json.Marshal(appErr)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &payload))

	assert.Equal(t, "applicant id is required", payload["message"])
	assert.Equal(t, string(CategoryValidation), payload["category"])
	assert.Equal(t, float64(http.StatusBadRequest), payload["http_status"])
	assert.NotContains(t, payload, "cause")
}

func TestValidationErrorMarshalsDetails(t *testing.T) {
	appErr := NewValidationError("invalid request body", "missing field: record")

	data, err := json.Marshal(appErr)
	require.NoError(t, err)

	var payload struct {
		Details struct {
			Errors map[string]string `json:"errors"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "missing field: record", payload.Details.Errors["validation_details"])
}

func TestModelErrorMarshalsCause(t *testing.T) {
	appErr := NewModelError("inference failed", fmt.Errorf("singular hessian"))

	data, err := json.Marshal(appErr)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "singular hessian", payload["cause"])
}

func TestToAppErrorPassesThroughAppError(t *testing.T) {
	original := NewValidationError("bad input")
	converted := ToAppError(fmt.Errorf("wrapped: %w", original))

	assert.Same(t, original, converted)
}

func TestToAppErrorMapsContextDeadline(t *testing.T) {
	appErr := ToAppError(context.DeadlineExceeded)

	assert.Equal(t, CategoryTimeout, appErr.Category)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.HTTPStatus)
}

func TestIsCategory(t *testing.T) {
	err := NewStorageError("write failed", fmt.Errorf("disk full"))

	assert.True(t, IsCategory(err, CategoryStorage))
	assert.False(t, IsCategory(err, CategoryValidation))
	assert.False(t, IsCategory(fmt.Errorf("plain"), CategoryStorage))
}
