// Package store builds the Firebase app and Firestore client shared by the
// identity verifier and the document repositories.
package store

// Store defines the base interface for data store operations
type Store interface {
	// Close releases any resources held by the store
	Close() error
}
