package enquiry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func postBody(handler http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler(rec, req)
	return rec
}

func TestCreateEnquiryRejectsMissingName(t *testing.T) {
	h := NewHandler(nil)

	rec := postBody(h.CreateEnquiry, "/api/enquiries",
		`{"name":"","mobile_number":"9876543210"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name is invalid")
}

func TestCreateEnquiryRejectsBadMobile(t *testing.T) {
	h := NewHandler(nil)

	rec := postBody(h.CreateEnquiry, "/api/enquiries",
		`{"name":"Walk-in lead","mobile_number":"12"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "mobile_number is invalid")
}

func TestCreateEnquiryRejectsOversizedComment(t *testing.T) {
	h := NewHandler(nil)

	rec := postBody(h.CreateEnquiry, "/api/enquiries",
		`{"name":"Walk-in lead","mobile_number":"9876543210","comment":"`+strings.Repeat("a", 1001)+`"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too long")
}

func TestUpdateEnquiryRejectsBadID(t *testing.T) {
	h := NewHandler(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/enquiries/nope",
		strings.NewReader(`{"name":"Lead","mobile_number":"9876543210"}`))
	h.UpdateEnquiry(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid enquiry id")
}
