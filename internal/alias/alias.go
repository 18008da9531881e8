// Package alias generates a default, human-friendly device name for a
// CLI instance that hasn't been given an explicit one.
//
// Grounded on the teacher's internal/localsend/utils/utils.go GenAlias
// (adjective+noun pair drawn from embedded word lists via
// math/rand.Intn), kept as a non-cryptographic choice since a device
// alias carries no security weight, unlike phrase.Generate.
package alias

import "math/rand"

var adjectives = []string{
	"Adorable", "Beautiful", "Big", "Bright", "Clean", "Clever", "Cool",
	"Cute", "Cunning", "Determined", "Energetic", "Efficient", "Fantastic",
	"Fast", "Fine", "Fresh", "Good", "Gorgeous", "Great", "Handsome",
	"Hot", "Kind", "Lovely", "Nice", "Proud", "Quiet", "Sharp", "Swift",
	"Warm", "Wise",
}

var nouns = []string{
	"Apple", "Banana", "Cherry", "Dolphin", "Eagle", "Falcon", "Grape",
	"Heron", "Iguana", "Jaguar", "Kiwi", "Lemon", "Mango", "Nectarine",
	"Otter", "Peach", "Quail", "Raccoon", "Squirrel", "Tiger", "Urchin",
	"Vulture", "Walrus", "Yak", "Zebra",
}

// Generate returns a random "<Adjective> <Noun>" default alias.
func Generate() string {
	return adjectives[rand.Intn(len(adjectives))] + " " + nouns[rand.Intn(len(nouns))]
}
