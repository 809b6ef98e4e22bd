// Package storage provides the durable key-value store behind draft
// persistence.
package storage

// KV is the get/set contract draft persistence writes through. Both calls
// are synchronous from the caller's point of view.
type KV interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)
	// Set writes the value, overwriting any previous one.
	Set(key, value string) error
}
