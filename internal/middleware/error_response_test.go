package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/castletter/internal/model"
)

func TestWriteErrorResponse_EncodesUnifiedFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, http.StatusBadRequest, model.NewInvalidURLError("スキームが不正"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("body decode failed: %v", err)
	}
	if body.Code != model.ErrCodeInvalidURL {
		t.Errorf("code = %q", body.Code)
	}
	if body.Category != "validation" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestStatusForAPIError(t *testing.T) {
	tests := []struct {
		apiErr *model.APIError
		want   int
	}{
		{model.NewSubscriptionNotFoundError("sub-1"), http.StatusNotFound},
		{model.NewDuplicateSubscriptionError(), http.StatusConflict},
		{model.NewSubscriptionLimitError(), http.StatusForbidden},
		{model.NewFetchFailedError("timeout"), http.StatusUnprocessableEntity},
		{model.NewParseFailedError(), http.StatusUnprocessableEntity},
		{model.NewInvalidURLError("x"), http.StatusBadRequest},
		{model.NewInvalidDeliveryHourError(25), http.StatusBadRequest},
		{model.NewInvalidEmailError(), http.StatusBadRequest},
	}

	for _, tt := range tests {
		if got := StatusForAPIError(tt.apiErr); got != tt.want {
			t.Errorf("StatusForAPIError(%s) = %d, want %d", tt.apiErr.Code, got, tt.want)
		}
	}
}
