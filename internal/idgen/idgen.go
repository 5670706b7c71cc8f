// Package idgen generates the opaque string ids used to identify
// every entity in the document and vector stores.
package idgen

import "github.com/google/uuid"

// New returns a fresh opaque id.
func New() string {
	return uuid.NewString()
}
