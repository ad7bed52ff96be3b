package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/pkg/helpers"
)

func TestHandleErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", errs.NewNotFoundError("widget not found"), http.StatusNotFound, "not_found"},
		{"exists", errs.NewAlreadyExistsError("dup"), http.StatusConflict, "already_exists"},
		{"validation", errs.NewValidationError("bad"), http.StatusBadRequest, "invalid_input"},
		{"conflict", errs.NewConflictError("not dragging"), http.StatusConflict, "conflict"},
		{"database", errs.NewDatabaseError("write", "failed", errors.New("disk")), http.StatusInternalServerError, "internal_error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	h := New(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(helpers.TestCtx())
			rr := httptest.NewRecorder()
			h.HandleError(rr, req, tc.err)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if body.Code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, body.Code)
			}
		})
	}
}

func TestHandleErrorHidesDatabaseDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(helpers.TestCtx())
	rr := httptest.NewRecorder()
	New(nil).HandleError(rr, req, errs.NewDatabaseError("read", "failed to load namespace", errors.New("secret dsn")))

	var body ErrorResponse
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if body.Message != "storage is unavailable" {
		t.Fatalf("expected generic message, got %q", body.Message)
	}
}

func TestHandleErrorUnwrapsTypedErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(helpers.TestCtx())

	rr := httptest.NewRecorder()
	New(nil).HandleError(rr, req, fmt.Errorf("w1: %w", errs.NewNotFoundError("widget not found")))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for wrapped not found, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	New(nil).HandleError(rr, req, &http.MaxBytesError{Limit: 1 << 20})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestWriteSuccessEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(helpers.TestCtx())
	rr := httptest.NewRecorder()
	New(nil).WriteSuccess(rr, req, http.StatusCreated, map[string]string{"id": "w1"})

	if rr.Code != http.StatusCreated || rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if !body.Success || body.Data["id"] != "w1" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestWriteAttachment(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(helpers.TestCtx())
	rr := httptest.NewRecorder()
	New(nil).WriteAttachment(rr, req, "home-dashboard.json", "application/json", []byte(`{"home_widgets":[]}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename=home-dashboard.json` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if rr.Body.String() != `{"home_widgets":[]}` {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}
