package submitapplication

type Config struct {
	// Status is written on new applications.
	Status string
}
