package models

import "time"

const (
	ApplicationStatusSubmitted = "submitted"
	ApplicationStatusConfirmed = "confirmed"
)

// Application is the record written by the submit step.
type Application struct {
	ID                 string                 `json:"id"`
	UserID             string                 `json:"userId"`
	JobID              string                 `json:"jobId"`
	BatchID            string                 `json:"batchId"`
	UploadID           string                 `json:"uploadId,omitempty"`
	FormData           map[string]interface{} `json:"formData,omitempty"`
	Status             string                 `json:"status"`
	ConfirmationNumber string                 `json:"confirmationNumber,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

// ApplicationForm is what the autofill step produces for the portal.
type ApplicationForm struct {
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Location      string `json:"location,omitempty"`
	JobTitle      string `json:"jobTitle"`
	Company       string `json:"company"`
	ResumeName    string `json:"resumeName"`
	CoverLetter   string `json:"coverLetter,omitempty"`
	HiringManager string `json:"hiringManager,omitempty"`
}
