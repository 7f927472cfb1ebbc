// Package id generates the prefixed identifiers used for every Kopa record.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Record prefixes. The prefix makes ids self-describing in logs and URLs.
const (
	PrefixTag          = "tag"
	PrefixTagParent    = "tp"
	PrefixSuggestion   = "sug"
	PrefixUser         = "user"
	PrefixNotification = "ntf"
)

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "tag-V1StGXR8_Z5jdHi6B-myT").
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
// Only for seed data and tests.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}
