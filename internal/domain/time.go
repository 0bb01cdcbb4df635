package domain

import "time"

// CurrentTimeProvider abstracts obtaining the current time, allowing deterministic tests.
type CurrentTimeProvider interface {
	// Now returns the current time.
	Now() time.Time
}
