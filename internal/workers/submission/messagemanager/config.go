package messagemanager

type Config struct {
	// Enabled false completes the step without sending anything.
	Enabled bool
}
