package autofillform

type Config struct {
	// DefaultCoverLetter is used when neither the lead nor the applicant
	// carries one.
	DefaultCoverLetter string
	MaxCoverLetterLen  int
}

const defaultCoverLetter = `Dear {{hiringManager}},

I am excited to apply for the {{title}} position at {{company}}. My resume is attached and I would welcome the chance to discuss how I can contribute to your team.

Best regards,
{{applicant}}`
