package workdayapply

type Input struct {
	UserID  string `json:"userId"`
	JobID   string `json:"jobId"`
	BatchID string `json:"batchId,omitempty"`
}

// Output flattens the single item outcome next to the batch result so
// gateways can branch on it.
type Output struct {
	Applied            bool   `json:"applied"`
	ConfirmationNumber string `json:"confirmationNumber,omitempty"`
}

const inputSchema = `{
	"type": "object",
	"required": ["userId", "jobId"],
	"properties": {
		"userId": {"type": "string", "minLength": 1},
		"jobId": {"type": "string", "minLength": 1},
		"batchId": {"type": "string"}
	}
}`
