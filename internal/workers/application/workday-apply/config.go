package workdayapply

import "time"

type Config struct {
	Timeout time.Duration
}
