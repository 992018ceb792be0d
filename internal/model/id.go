package model

import "github.com/oklog/ulid/v2"

// NewID generates a ULID string used for run, test case and attempt identifiers.
func NewID() string {
	return ulid.Make().String()
}
