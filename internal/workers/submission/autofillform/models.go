package autofillform

const formSchemaJSON = `{
  "type": "object",
  "properties": {
    "fullName":      {"type": "string", "minLength": 1, "maxLength": 200},
    "email":         {"type": "string", "format": "email"},
    "phone":         {"type": "string", "format": "phone"},
    "location":      {"type": "string", "maxLength": 200},
    "jobTitle":      {"type": "string", "minLength": 1},
    "company":       {"type": "string", "minLength": 1},
    "resumeName":    {"type": "string", "minLength": 1},
    "coverLetter":   {"type": "string"},
    "hiringManager": {"type": "string"}
  },
  "required": ["fullName", "email", "jobTitle", "company", "resumeName"]
}`
