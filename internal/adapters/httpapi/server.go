package httpapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/openhouse-labs/tour-scheduling-api/internal/app/tours"
	"github.com/openhouse-labs/tour-scheduling-api/internal/domain"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
	defaultSort     = "start_at"

	idempotencyKeyHeader = "Idempotency-Key"
)

// Server is the HTTP adapter over the booking engine.
type Server struct {
	Tours *tours.Service

	validate *validator.Validate
}

func NewServer(toursSvc *tours.Service) *Server {
	v := validator.New()
	// Report field names as their JSON tags so validation failures name the
	// wire-level field.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{Tours: toursSvc, validate: v}
}

type createTourRequest struct {
	PropertyID string `json:"property_id" validate:"required"`
	CustomerID string `json:"customer_id" validate:"required"`
	StartAt    string `json:"start_at" validate:"required"`
	EndAt      string `json:"end_at" validate:"required"`
}

type tourResponse struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	PropertyID string    `json:"property_id"`
	CustomerID string    `json:"customer_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type listToursResponse struct {
	Items    []tourResponse `json:"items"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int            `json:"total"`
}

func (s *Server) CreateTour(w http.ResponseWriter, r *http.Request) {
	var req createTourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", "")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	startAt, err := parseInstant(req.StartAt)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "must be an RFC 3339 timestamp with timezone offset", "start_at")
		return
	}
	endAt, err := parseInstant(req.EndAt)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "must be an RFC 3339 timestamp with timezone offset", "end_at")
		return
	}

	tour, created, err := s.Tours.CreateTour(r.Context(), tours.CreateTourInput{
		PropertyID:     domain.PropertyID(req.PropertyID),
		CustomerID:     domain.CustomerID(req.CustomerID),
		StartAt:        startAt,
		EndAt:          endAt,
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		// Idempotent replay: same payload, distinct success status.
		status = http.StatusOK
	}
	writeJSON(w, status, toTourResponse(tour))
}

func (s *Server) GetTour(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tourID")
	tour, err := s.Tours.GetTour(r.Context(), domain.TourID(id))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTourResponse(tour))
}

func (s *Server) ListTours(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	in := tours.ListToursInput{
		PropertyID: domain.PropertyID(q.Get("property_id")),
		Sort:       defaultSort,
		Page:       defaultPage,
		PageSize:   defaultPageSize,
	}
	if v := q.Get("sort"); v != "" {
		in.Sort = v
	}

	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse(openapi_types.DateFormat, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "must be a calendar date (YYYY-MM-DD)", "date")
			return
		}
		d = d.UTC()
		in.Date = &d
	}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "must be an integer >= 1", "page")
			return
		}
		in.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > maxPageSize {
			writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "must be an integer between 1 and 100", "page_size")
			return
		}
		in.PageSize = size
	}

	result, err := s.Tours.ListTours(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items := make([]tourResponse, 0, len(result.Items))
	for _, t := range result.Items {
		items = append(items, toTourResponse(t))
	}
	writeJSON(w, http.StatusOK, listToursResponse{
		Items:    items,
		Page:     in.Page,
		PageSize: in.PageSize,
		Total:    result.Total,
	})
}

func (s *Server) CancelTour(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tourID")
	if err := s.Tours.CancelTour(r.Context(), domain.TourID(id)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseInstant accepts RFC 3339 only, which makes the timezone offset
// mandatory; naive timestamps never reach the engine.
func parseInstant(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing required field", ves[0].Field())
		return
	}
	writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", "")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toTourResponse(t domain.Tour) tourResponse {
	return tourResponse{
		ID:         string(t.ID),
		Status:     string(t.Status),
		PropertyID: string(t.PropertyID),
		CustomerID: string(t.CustomerID),
		StartAt:    t.StartAt,
		EndAt:      t.EndAt,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}
