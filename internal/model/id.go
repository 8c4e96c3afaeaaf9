package model

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string for use as an entity identifier.
// Users and jobs sort lexicographically by creation time.
func NewID() string {
	return ulid.Make().String()
}

// NewFileID generates the identifier for an uploaded PDF. Upload ids are
// UUIDs because they double as on-disk filenames under the uploads
// directory and must not leak creation order.
func NewFileID() string {
	return uuid.NewString()
}
