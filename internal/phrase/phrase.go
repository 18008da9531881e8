// Package phrase generates, validates, normalizes, and hashes the
// human-memorable code phrases used to pair a sender and a receiver.
package phrase

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// ErrEmptyWordList is returned when a WordLists implementation and the
// embedded fallback both produce no candidates.
var ErrEmptyWordList = errors.New("phrase: word list is empty")

// WordLists is the external collaborator that owns the full adjective
// and noun assets (spec §1 "word-list asset loading" is out of core
// scope). Generate falls back to a small embedded list when lists is
// nil or returns no words.
type WordLists interface {
	Adjectives() []string
	Nouns() []string
}

// fallbackAdjectives and fallbackNouns back Generate when no WordLists
// is supplied, or when the caller's lists are empty.
var fallbackAdjectives = []string{
	"swift", "quiet", "brave", "calm", "eager", "gentle", "happy",
	"lively", "mellow", "nimble", "proud", "rapid", "sharp", "sturdy",
	"tidy", "vivid", "warm", "wise", "young", "zesty",
}

var fallbackNouns = []string{
	"ocean", "forest", "meadow", "canyon", "harbor", "summit", "valley",
	"glacier", "desert", "island", "river", "prairie", "orchard",
	"boulder", "lagoon", "cove", "ridge", "delta", "thicket", "plateau",
}

// Generate picks one adjective and one noun independently and
// uniformly at random and returns the canonical "<adjective>-<noun>"
// phrase. lists may be nil to use the embedded fallback.
func Generate(lists WordLists) (string, error) {
	adjs, nouns := fallbackAdjectives, fallbackNouns
	if lists != nil {
		if a := lists.Adjectives(); len(a) > 0 {
			adjs = a
		}
		if n := lists.Nouns(); len(n) > 0 {
			nouns = n
		}
	}

	adj, err := randChoice(adjs)
	if err != nil {
		return "", err
	}
	noun, err := randChoice(nouns)
	if err != nil {
		return "", err
	}

	return Normalize(adj + "-" + noun), nil
}

func randChoice(words []string) (string, error) {
	if len(words) == 0 {
		return "", ErrEmptyWordList
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", err
	}
	return words[n.Int64()], nil
}

// Normalize trims outer whitespace and lowercases s. It does not
// validate segment structure; call Validate for that.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate reports whether s normalizes to exactly two non-empty
// segments joined by a single '-'.
func Validate(s string) bool {
	norm := Normalize(s)
	if norm == "" {
		return false
	}
	parts := strings.Split(norm, "-")
	if len(parts) != 2 {
		return false
	}
	return parts[0] != "" && parts[1] != ""
}

// Hash returns the lowercase hex SHA-256 of the canonical form of s.
// It is stable: Hash(p) == Hash(Normalize(p)) for any p.
func Hash(s string) string {
	norm := Normalize(s)
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
