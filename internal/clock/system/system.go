// Package system provides the wall clock used outside tests.
package system

import (
	"time"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

// Clock reads the wall clock in UTC so run timestamps, file names and
// persisted rows agree regardless of the host zone.
type Clock struct{}

var _ scraper.Clock = Clock{}

// New returns the wall clock.
func New() Clock {
	return Clock{}
}

// Now implements scraper.Clock.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
