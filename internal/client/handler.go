package client

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/perivi8/Business-Guru-Backend/internal/auth"
	"github.com/perivi8/Business-Guru-Backend/internal/notify"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
var mobileRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	repo     *Repository
	notifier *notify.Dispatcher
}

func NewHandler(repo *Repository, notifier *notify.Dispatcher) *Handler {
	return &Handler{repo: repo, notifier: notifier}
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}

	writeJSON(w, http.StatusOK, clients)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	c, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load client")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	c, err := h.repo.Create(r.Context(), input, identity.UserID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create client")
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	c, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update client")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

type loanStatusRequest struct {
	LoanStatus string `json:"loan_status"`
}

// UpdateLoanStatus transitions the client's loan application and emails the
// client about the new state.
func (h *Handler) UpdateLoanStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var body loanStatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	status := strings.ToLower(strings.TrimSpace(body.LoanStatus))
	if !ValidLoanStatus(status) {
		writeError(w, http.StatusBadRequest, "unsupported loan status")
		return
	}

	c, err := h.repo.UpdateLoanStatus(r.Context(), id, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update loan status")
		return
	}

	h.notifyStatusChange(c)

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete client")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) notifyStatusChange(c Client) {
	if h.notifier == nil || c.Email == "" {
		return
	}

	subject := "Update on your loan application"
	var line string
	switch c.LoanStatus {
	case LoanStatusApproved:
		line = "your loan application has been approved."
	case LoanStatusRejected:
		line = "your loan application could not be approved at this time."
	case LoanStatusHold:
		line = "your loan application is currently on hold."
	case LoanStatusSoon:
		line = "your loan application decision is expected soon."
	default:
		line = "your loan application is being processed."
	}

	h.notifier.Dispatch(notify.Message{
		To:      []string{c.Email},
		Subject: subject,
		HTML:    fmt.Sprintf("<p>Dear %s, %s</p>", c.LegalName, line),
	})
}

func parseInput(w http.ResponseWriter, r *http.Request) (ClientInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input ClientInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return ClientInput{}, false
	}

	input.LegalName = strings.TrimSpace(input.LegalName)
	input.TradeName = strings.TrimSpace(input.TradeName)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.MobileNumber = strings.TrimSpace(input.MobileNumber)
	input.BusinessNature = strings.TrimSpace(input.BusinessNature)
	input.GSTNumber = strings.TrimSpace(strings.ToUpper(input.GSTNumber))
	input.Feedback = strings.TrimSpace(input.Feedback)
	input.DocumentURL = strings.TrimSpace(input.DocumentURL)

	if input.LegalName == "" {
		writeError(w, http.StatusBadRequest, "legal_name is required")
		return ClientInput{}, false
	}
	if !utf8.ValidString(input.LegalName) || len(input.LegalName) > 150 {
		writeError(w, http.StatusBadRequest, "legal_name is invalid")
		return ClientInput{}, false
	}
	if !utf8.ValidString(input.TradeName) || len(input.TradeName) > 150 {
		writeError(w, http.StatusBadRequest, "trade_name is invalid")
		return ClientInput{}, false
	}
	if input.Email != "" && !emailRegex.MatchString(input.Email) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return ClientInput{}, false
	}
	if input.MobileNumber == "" || !mobileRegex.MatchString(input.MobileNumber) {
		writeError(w, http.StatusBadRequest, "mobile_number is invalid")
		return ClientInput{}, false
	}
	if len(input.BusinessNature) > 300 || len(input.Feedback) > 1000 {
		writeError(w, http.StatusBadRequest, "field value is too long")
		return ClientInput{}, false
	}
	if len(input.GSTNumber) > 20 {
		writeError(w, http.StatusBadRequest, "gst_number is invalid")
		return ClientInput{}, false
	}
	if len(input.DocumentURL) > 500 {
		writeError(w, http.StatusBadRequest, "document_url is too long")
		return ClientInput{}, false
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
