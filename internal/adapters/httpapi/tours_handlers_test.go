package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	memclock "github.com/openhouse-labs/tour-scheduling-api/internal/adapters/memory/clock"
	memtourstore "github.com/openhouse-labs/tour-scheduling-api/internal/adapters/memory/tourstore"
	"github.com/openhouse-labs/tour-scheduling-api/internal/app/tours"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field"`
	RequestID string `json:"request_id"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := memtourstore.NewStore()
	clk := memclock.NewManualClock(time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := tours.NewService(store, clk, log)
	return NewRouter(NewServer(svc))
}

func tourPayload(offsetMinutes int) map[string]string {
	start := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC).Add(time.Duration(offsetMinutes) * time.Minute)
	end := start.Add(30 * time.Minute)
	return map[string]string{
		"property_id": "prop-test",
		"customer_id": "cust-test",
		"start_at":    start.Format(time.RFC3339),
		"end_at":      end.Format(time.RFC3339),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var eb errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &eb); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return eb
}

func TestCreateTour_CreatedAndReplayed(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	payload := tourPayload(0)
	headers := map[string]string{"Idempotency-Key": "key-123"}

	first := doJSON(t, h, http.MethodPost, "/v1/tours", payload, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", first.Code, first.Body.String())
	}
	var created map[string]any
	if err := json.Unmarshal(first.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["status"] != "BOOKED" || created["property_id"] != "prop-test" {
		t.Fatalf("body=%v", created)
	}
	if created["id"] == "" {
		t.Fatalf("missing id")
	}

	// Replay: 200 with a byte-identical body.
	second := doJSON(t, h, http.MethodPost, "/v1/tours", payload, headers)
	if second.Code != http.StatusOK {
		t.Fatalf("replay status=%d", second.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("replay body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
}

func TestCreateTour_BadRequests(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/tours", bytes.NewBufferString("{nope"))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != "BAD_REQUEST" {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("missing field", func(t *testing.T) {
		payload := tourPayload(0)
		delete(payload, "property_id")
		rr := doJSON(t, h, http.MethodPost, "/v1/tours", payload, nil)
		eb := decodeError(t, rr)
		if rr.Code != http.StatusBadRequest || eb.Field != "property_id" {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("naive timestamp", func(t *testing.T) {
		payload := tourPayload(0)
		payload["start_at"] = "2026-08-25T10:00:00" // no offset
		rr := doJSON(t, h, http.MethodPost, "/v1/tours", payload, nil)
		eb := decodeError(t, rr)
		if rr.Code != http.StatusBadRequest || eb.Field != "start_at" {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("end before start", func(t *testing.T) {
		payload := tourPayload(0)
		payload["end_at"] = payload["start_at"]
		rr := doJSON(t, h, http.MethodPost, "/v1/tours", payload, nil)
		eb := decodeError(t, rr)
		if rr.Code != http.StatusBadRequest || eb.Field != "end_at" {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})
}

func TestCreateTour_Conflict(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	payload := tourPayload(0)

	if rr := doJSON(t, h, http.MethodPost, "/v1/tours", payload, nil); rr.Code != http.StatusCreated {
		t.Fatalf("first create status=%d", rr.Code)
	}
	rr := doJSON(t, h, http.MethodPost, "/v1/tours", payload, nil)
	if rr.Code != http.StatusConflict || decodeError(t, rr).Code != "CONFLICT" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateTour_RateLimited(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)

	for i := 0; i < 3; i++ {
		payload := tourPayload(i * 60)
		payload["property_id"] = fmt.Sprintf("prop-%d", i)
		if rr := doJSON(t, h, http.MethodPost, "/v1/tours", payload, nil); rr.Code != http.StatusCreated {
			t.Fatalf("create %d status=%d body=%s", i, rr.Code, rr.Body.String())
		}
	}

	payload := tourPayload(240)
	payload["property_id"] = "prop-4"
	rr := doJSON(t, h, http.MethodPost, "/v1/tours", payload, nil)
	if rr.Code != http.StatusTooManyRequests || decodeError(t, rr).Code != "RATE_LIMIT" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetTour(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodGet, "/v1/tours/tour_missing", nil, nil)
	if rr.Code != http.StatusNotFound || decodeError(t, rr).Code != "NOT_FOUND" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	created := doJSON(t, h, http.MethodPost, "/v1/tours", tourPayload(0), nil)
	var tour map[string]any
	if err := json.Unmarshal(created.Body.Bytes(), &tour); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id, _ := tour["id"].(string)

	got := doJSON(t, h, http.MethodGet, "/v1/tours/"+id, nil, nil)
	if got.Code != http.StatusOK {
		t.Fatalf("status=%d", got.Code)
	}
	if !bytes.Equal(created.Body.Bytes(), got.Body.Bytes()) {
		t.Fatalf("get body differs from create body")
	}
}

func TestListTours(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)

	for i := 0; i < 3; i++ {
		payload := tourPayload(i * 60)
		payload["customer_id"] = fmt.Sprintf("cust-%d", i)
		if rr := doJSON(t, h, http.MethodPost, "/v1/tours", payload, nil); rr.Code != http.StatusCreated {
			t.Fatalf("create %d status=%d", i, rr.Code)
		}
	}

	t.Run("defaults", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodGet, "/v1/tours", nil, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		var resp struct {
			Items    []map[string]any `json:"items"`
			Page     int              `json:"page"`
			PageSize int              `json:"page_size"`
			Total    int              `json:"total"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Page != 1 || resp.PageSize != 20 || resp.Total != 3 || len(resp.Items) != 3 {
			t.Fatalf("resp=%+v", resp)
		}
	})

	t.Run("property filter", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodGet, "/v1/tours?property_id=prop-other", nil, nil)
		var resp struct {
			Total int `json:"total"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Total != 0 {
			t.Fatalf("total=%d", resp.Total)
		}
	})

	t.Run("date filter", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodGet, "/v1/tours?date=2026-08-25", nil, nil)
		var resp struct {
			Total int `json:"total"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Total != 3 {
			t.Fatalf("total=%d", resp.Total)
		}
	})

	t.Run("invalid params", func(t *testing.T) {
		cases := map[string]string{
			"/v1/tours?page=0":          "page",
			"/v1/tours?page=x":          "page",
			"/v1/tours?page_size=0":     "page_size",
			"/v1/tours?page_size=101":   "page_size",
			"/v1/tours?date=yesterday":  "date",
			"/v1/tours?sort=created_at": "sort",
		}
		for path, field := range cases {
			rr := doJSON(t, h, http.MethodGet, path, nil, nil)
			eb := decodeError(t, rr)
			if rr.Code != http.StatusBadRequest || eb.Field != field {
				t.Fatalf("%s: status=%d body=%s", path, rr.Code, rr.Body.String())
			}
		}
	})
}

func TestCancelTour(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodDelete, "/v1/tours/tour_missing", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}

	created := doJSON(t, h, http.MethodPost, "/v1/tours", tourPayload(0), nil)
	var tour map[string]any
	if err := json.Unmarshal(created.Body.Bytes(), &tour); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id, _ := tour["id"].(string)

	if rr := doJSON(t, h, http.MethodDelete, "/v1/tours/"+id, nil, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("cancel status=%d", rr.Code)
	}
	// Cancelling twice is idempotent at the transport level too.
	if rr := doJSON(t, h, http.MethodDelete, "/v1/tours/"+id, nil, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("second cancel status=%d", rr.Code)
	}

	got := doJSON(t, h, http.MethodGet, "/v1/tours/"+id, nil, nil)
	var after map[string]any
	if err := json.Unmarshal(got.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after["status"] != "CANCELLED" {
		t.Fatalf("status=%v", after["status"])
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	rr := doJSON(t, h, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
}
