// Package namespace derives vector index namespaces from topic strings.
//
// A topic is normalised (trimmed, lower-cased) and hashed with MD5; the first
// 16 hex characters, prefixed with "topic-", name the namespace. The scheme
// matches namespaces written by earlier versions of the application, so it
// must not change without re-checking the collision test in this package.
package namespace

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Prefix tags every namespace created from a topic.
const Prefix = "topic-"

// hashLength is the number of hex characters kept from the digest (64 bits).
const hashLength = 16

// Normalize returns the canonical form of a topic.
func Normalize(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

// Hash returns the truncated hex digest of the normalised topic.
func Hash(topic string) string {
	sum := md5.Sum([]byte(Normalize(topic)))
	return hex.EncodeToString(sum[:])[:hashLength]
}

// Resolve maps a topic to its namespace.
func Resolve(topic string) string {
	return Prefix + Hash(topic)
}

// IsTopicNamespace reports whether ns looks like a namespace produced by Resolve.
func IsTopicNamespace(ns string) bool {
	rest, ok := strings.CutPrefix(ns, Prefix)
	if !ok || len(rest) != hashLength {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}
