// Package id generates prefixed document identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Document id prefixes.
const (
	PrefixUser            = "usr"
	PrefixItem            = "itm"
	PrefixImage           = "img"
	PrefixBorrowRequest   = "brq"
	PrefixExtendRequest   = "erq"
	PrefixFavoriteStorage = "fst"
	PrefixFavoriteItem    = "fit"
	PrefixNotification    = "ntf"
	PrefixStream          = "stm"
	PrefixToken           = "jti"
)

// Generate creates an id of the form prefix-nanoid (e.g. "itm-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
