package enquiry

import "time"

// Enquiry is an inbound lead before it becomes a client record. Staff pick
// them up, add comments, and either convert or close them.
type Enquiry struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	MobileNumber   string    `json:"mobile_number"`
	GSTNumber      string    `json:"gst_number,omitempty"`
	BusinessNature string    `json:"business_nature,omitempty"`
	AssignedStaff  string    `json:"assigned_staff,omitempty"`
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type EnquiryInput struct {
	Name           string `json:"name"`
	MobileNumber   string `json:"mobile_number"`
	GSTNumber      string `json:"gst_number"`
	BusinessNature string `json:"business_nature"`
	AssignedStaff  string `json:"assigned_staff"`
	Comment        string `json:"comment"`
}
