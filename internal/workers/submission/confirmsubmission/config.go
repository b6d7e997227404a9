package confirmsubmission

type Config struct {
	// Prefix is prepended to the confirmation number, e.g. "WD-".
	Prefix string
}
