package portallogin

import "time"

type Config struct {
	// SessionTTL caps how long a portal session is reused.
	SessionTTL time.Duration
	// RefreshMargin treats sessions expiring sooner than this as expired.
	RefreshMargin time.Duration
	// DefaultPortal is used when the lead has no application link.
	DefaultPortal string
}
