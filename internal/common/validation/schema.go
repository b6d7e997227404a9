package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// JSONSchema is the subset of JSON schema understood by ValidateInput.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Pattern     *string             `json:"pattern,omitempty"`
	MinLength   *int                `json:"minLength,omitempty"`
	MaxLength   *int                `json:"maxLength,omitempty"`
	Format      string              `json:"format,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern  = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
	urlPattern    = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
	stepIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
)

// ValidateInput checks input against schema and collects every violation.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	var errs []ValidationError

	for _, requiredField := range schema.Required {
		if v, exists := input[requiredField]; !exists || v == nil {
			errs = append(errs, ValidationError{
				Field:   requiredField,
				Message: "required field missing",
				Code:    "REQUIRED_FIELD_MISSING",
			})
		}
	}

	for fieldName, value := range input {
		prop, exists := schema.Properties[fieldName]
		if !exists {
			if !schema.AdditionalProperties {
				errs = append(errs, ValidationError{
					Field:   fieldName,
					Message: "field not allowed in schema",
					Code:    "EXTRA_FIELD",
				})
			}
			continue
		}
		if value == nil {
			continue
		}
		errs = append(errs, validateField(fieldName, value, prop)...)
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidateStruct round-trips v through JSON so struct tags decide the field
// names, then validates the resulting map.
func ValidateStruct(v interface{}, schema JSONSchema) (*ValidationResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var input map[string]interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, err
	}
	return ValidateInput(input, schema), nil
}

func validateField(fieldName string, value interface{}, prop Property) []ValidationError {
	if typeErr := validateType(value, prop.Type); typeErr != nil {
		return []ValidationError{{
			Field:   fieldName,
			Message: typeErr.Error(),
			Code:    "INVALID_TYPE",
		}}
	}

	var errs []ValidationError
	add := func(code, msg string) {
		errs = append(errs, ValidationError{Field: fieldName, Message: msg, Code: code})
	}

	switch v := value.(type) {
	case string:
		if prop.MinLength != nil && len(v) < *prop.MinLength {
			add("MIN_LENGTH_VIOLATION", fmt.Sprintf("value must be at least %d characters", *prop.MinLength))
		}
		if prop.MaxLength != nil && len(v) > *prop.MaxLength {
			add("MAX_LENGTH_VIOLATION", fmt.Sprintf("value must be at most %d characters", *prop.MaxLength))
		}
		if prop.Pattern != nil {
			if matched, err := regexp.MatchString(*prop.Pattern, v); err != nil || !matched {
				add("PATTERN_MISMATCH", fmt.Sprintf("value must match pattern %s", *prop.Pattern))
			}
		}
		if len(prop.Enum) > 0 && !contains(prop.Enum, v) {
			add("INVALID_ENUM_VALUE", fmt.Sprintf("value must be one of %v", prop.Enum))
		}
		if msg := checkFormat(prop.Format, v); msg != "" {
			add("INVALID_FORMAT", msg)
		}
	case float64:
		if prop.Minimum != nil && v < *prop.Minimum {
			add("MINIMUM_VIOLATION", fmt.Sprintf("value must be >= %g", *prop.Minimum))
		}
		if prop.Maximum != nil && v > *prop.Maximum {
			add("MAXIMUM_VIOLATION", fmt.Sprintf("value must be <= %g", *prop.Maximum))
		}
	case []interface{}:
		if prop.Items != nil {
			for i, item := range v {
				errs = append(errs, validateField(fmt.Sprintf("%s[%d]", fieldName, i), item, *prop.Items)...)
			}
		}
	case map[string]interface{}:
		if prop.Properties != nil {
			nested := ValidateInput(v, JSONSchema{
				Type:                 "object",
				Properties:           prop.Properties,
				Required:             prop.Required,
				AdditionalProperties: true,
			})
			for _, nestedErr := range nested.Errors {
				errs = append(errs, ValidationError{
					Field:   fieldName + "." + nestedErr.Field,
					Message: nestedErr.Message,
					Code:    nestedErr.Code,
				})
			}
		}
	}
	return errs
}

func checkFormat(format, v string) string {
	switch format {
	case "email":
		if !ValidateEmail(v) {
			return "value must be a valid email address"
		}
	case "phone":
		if !ValidatePhone(v) {
			return "value must be a valid phone number"
		}
	case "uri":
		if !ValidateURL(v) {
			return "value must be a valid http(s) URL"
		}
	}
	return ""
}

func validateType(value interface{}, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "number":
		switch value.(type) {
		case float64, int, int32, int64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			if v != math.Trunc(v) {
				return fmt.Errorf("expected integer, got %v", v)
			}
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	case "array":
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// ValidateStepID checks a flow step identifier: lowercase, starts with a
// letter, hyphens allowed.
func ValidateStepID(id string) error {
	if !stepIDPattern.MatchString(id) {
		return fmt.Errorf("step id %q must match %s", id, stepIDPattern.String())
	}
	return nil
}

// GetSchemaFromJSON parses JSON schema from string
func GetSchemaFromJSON(schemaJSON string) (JSONSchema, error) {
	var schema JSONSchema
	err := json.Unmarshal([]byte(schemaJSON), &schema)
	return schema, err
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a field and its nested children.
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func ValidateURL(url string) bool {
	return urlPattern.MatchString(url)
}
