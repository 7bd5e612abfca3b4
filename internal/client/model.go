package client

import "time"

// Loan statuses a client record can carry.
const (
	LoanStatusProcessing = "processing"
	LoanStatusApproved   = "approved"
	LoanStatusRejected   = "rejected"
	LoanStatusHold       = "hold"
	LoanStatusSoon       = "soon"
)

func ValidLoanStatus(status string) bool {
	switch status {
	case LoanStatusProcessing, LoanStatusApproved, LoanStatusRejected, LoanStatusHold, LoanStatusSoon:
		return true
	}
	return false
}

type Client struct {
	ID             string    `json:"id"`
	LegalName      string    `json:"legal_name"`
	TradeName      string    `json:"trade_name"`
	Email          string    `json:"email"`
	MobileNumber   string    `json:"mobile_number"`
	BusinessNature string    `json:"business_nature"`
	GSTNumber      string    `json:"gst_number"`
	LoanStatus     string    `json:"loan_status"`
	Feedback       string    `json:"feedback"`
	DocumentURL    string    `json:"document_url,omitempty"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ClientInput struct {
	LegalName      string `json:"legal_name"`
	TradeName      string `json:"trade_name"`
	Email          string `json:"email"`
	MobileNumber   string `json:"mobile_number"`
	BusinessNature string `json:"business_nature"`
	GSTNumber      string `json:"gst_number"`
	Feedback       string `json:"feedback"`
	DocumentURL    string `json:"document_url"`
}
