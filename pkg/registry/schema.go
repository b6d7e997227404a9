package registry

// FlowRegistry is the on-disk description of the submission flows.
type FlowRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Flows       []FlowSpec `json:"flows"`
}

type FlowSpec struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"displayName"`
	Description string     `json:"description"`
	TaskType    string     `json:"taskType"`
	Steps       []StepSpec `json:"steps"`
}

type StepSpec struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Timeout    string   `json:"timeout,omitempty"`
	ErrorCodes []string `json:"errorCodes,omitempty"`
}

// Step identifiers with an executor implementation.
const (
	StepFormat   = "format"
	StepAutofill = "autofill"
	StepUpload   = "upload"
	StepSubmit   = "submit"
	StepMessage  = "message"
	StepLogin    = "login"
	StepConfirm  = "confirm"
)

var KnownSteps = map[string]bool{
	StepFormat:   true,
	StepAutofill: true,
	StepUpload:   true,
	StepSubmit:   true,
	StepMessage:  true,
	StepLogin:    true,
	StepConfirm:  true,
}
