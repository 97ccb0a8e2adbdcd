// Package ident derives stable, content-addressed identities.
//
// Everything the engagement engine shows to more than one observer (scripted
// reaction baselines, scripted reply picks, fallback reply ids, the script
// fingerprint) must come out identical on every page load, tab and device.
// Those values are therefore hashed from their content rather than drawn from
// a random source or a counter.
//
// Hashes use SHA-256 with domain separation:
//
//	SHA256(domain + 0x00 + part[0] + 0x00 + part[1] ...)
//
// Parts are NFC-normalized first so that visually identical strings with
// different Unicode compositions hash the same.
package ident

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes. The version suffix allows an algorithm change without
// silently colliding with values derived under the old scheme.
const (
	DomainScript   = "cohort/script/v1"
	DomainTally    = "cohort/tally/v1"
	DomainReply    = "cohort/reply/v1"
	DomainFallback = "cohort/fallback/v1"
)

// Normalize returns the NFC form of s.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

func sum(domain string, parts []string) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00}) // separator keeps ("ab","c") and ("a","bc") distinct
		h.Write([]byte(Normalize(p)))
	}
	return h.Sum(nil)
}

// Hash returns the hex-encoded domain-separated digest of parts.
func Hash(domain string, parts ...string) string {
	return hex.EncodeToString(sum(domain, parts))
}

// Short returns the first n hex characters of Hash. n is clamped to [1, 64].
func Short(n int, domain string, parts ...string) string {
	if n < 1 {
		n = 1
	}
	if n > sha256.Size*2 {
		n = sha256.Size * 2
	}
	return Hash(domain, parts...)[:n]
}

// Uint64 interprets the leading 8 bytes of the digest as a big-endian integer.
// Used for deterministic picks (index = Uint64(...) % len).
func Uint64(domain string, parts ...string) uint64 {
	return binary.BigEndian.Uint64(sum(domain, parts)[:8])
}
