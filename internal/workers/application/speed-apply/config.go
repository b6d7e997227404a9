package speedapply

import "time"

type Config struct {
	// Timeout bounds one batch. Zero means no limit beyond the job timeout.
	Timeout time.Duration
}
