package enquiry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var mobileRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) ListEnquiries(w http.ResponseWriter, r *http.Request) {
	enquiries, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list enquiries")
		return
	}

	writeJSON(w, http.StatusOK, enquiries)
}

func (h *Handler) CreateEnquiry(w http.ResponseWriter, r *http.Request) {
	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	e, err := h.repo.Create(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create enquiry")
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) UpdateEnquiry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid enquiry id")
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	e, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "enquiry not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update enquiry")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) DeleteEnquiry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid enquiry id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "enquiry not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete enquiry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseInput(w http.ResponseWriter, r *http.Request) (EnquiryInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input EnquiryInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return EnquiryInput{}, false
	}

	input.Name = strings.TrimSpace(input.Name)
	input.MobileNumber = strings.TrimSpace(input.MobileNumber)
	input.GSTNumber = strings.TrimSpace(strings.ToUpper(input.GSTNumber))
	input.BusinessNature = strings.TrimSpace(input.BusinessNature)
	input.AssignedStaff = strings.TrimSpace(input.AssignedStaff)
	input.Comment = strings.TrimSpace(input.Comment)

	if input.Name == "" || !utf8.ValidString(input.Name) || len(input.Name) > 150 {
		writeError(w, http.StatusBadRequest, "name is invalid")
		return EnquiryInput{}, false
	}
	if input.MobileNumber == "" || !mobileRegex.MatchString(input.MobileNumber) {
		writeError(w, http.StatusBadRequest, "mobile_number is invalid")
		return EnquiryInput{}, false
	}
	if len(input.GSTNumber) > 20 {
		writeError(w, http.StatusBadRequest, "gst_number is invalid")
		return EnquiryInput{}, false
	}
	if len(input.BusinessNature) > 300 || len(input.AssignedStaff) > 100 || len(input.Comment) > 1000 {
		writeError(w, http.StatusBadRequest, "field value is too long")
		return EnquiryInput{}, false
	}

	return input, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
