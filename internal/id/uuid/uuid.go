// Package uuid generates run identifiers.
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator creates UUIDv7 run IDs, which sort by start time.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Short returns the first block of id, used in file names and log prefixes.
func Short(id string) string {
	head, _, _ := strings.Cut(id, "-")
	return head
}

// Valid reports whether id parses as a UUID. Operators may pass --run-id to
// resume a run row.
func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
