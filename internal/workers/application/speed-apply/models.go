package speedapply

type Input struct {
	UserID  string   `json:"userId"`
	JobIDs  []string `json:"jobIds"`
	BatchID string   `json:"batchId,omitempty"`
}

const inputSchema = `{
	"type": "object",
	"required": ["userId", "jobIds"],
	"properties": {
		"userId": {"type": "string", "minLength": 1},
		"jobIds": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		},
		"batchId": {"type": "string"}
	}
}`
