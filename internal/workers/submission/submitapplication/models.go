package submitapplication

type auditDetails struct {
	UserID   string `json:"userId"`
	JobID    string `json:"jobId"`
	BatchID  string `json:"batchId"`
	Flow     string `json:"flow"`
	UploadID string `json:"uploadId,omitempty"`
	Company  string `json:"company"`
	Title    string `json:"title"`
}
