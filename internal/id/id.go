package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Entity prefixes used across the store. Keeping them in one place makes
// key collisions between entity kinds impossible.
const (
	PrefixThread     = "thr"
	PrefixCollection = "coll"
	PrefixTag        = "tag"
	PrefixUser       = "user"
	PrefixSession    = "sess"
	PrefixChange     = "chg"
)

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "thr-V1StGXR8_Z5jdHi6B-myT")
//
// NanoIDs are URL-friendly, compact (21 characters vs UUID's 36), and
// collision-resistant under rapid saves, unlike timestamp-derived IDs.
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
// Use this only when failure should crash the program (e.g., during seeding).
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
