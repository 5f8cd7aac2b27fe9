package xprop

// Store holds the properties of one message. Implementations are provided by
// the host and are not shared across messages, so they need no locking.
type Store interface {
	// Get returns the stored value of name.
	Get(name QName) (string, bool)
	// Set stores value under name without indexing it.
	Set(name QName, value string)
	// SetIndexed stores value under name and marks it indexed.
	SetIndexed(name QName, value string)
	// IsIndexed reports whether name is marked indexed.
	IsIndexed(name QName) bool
	// Clear drops the indexed flag of name, then its value.
	Clear(name QName)
}
