package utils

import (
	"fmt"
	"math/rand"
)

// Word lists for generating memorable participant display names.
var (
	adjectives = []string{
		"Swift", "Mighty", "Blazing", "Thunder", "Lightning", "Turbo", "Rocket", "Phantom",
		"Stealth", "Cyber", "Neon", "Quantum", "Atomic", "Cosmic", "Solar", "Lunar",
		"Storm", "Fire", "Ice", "Wind", "Shadow", "Golden", "Silver", "Diamond",
	}

	animals = []string{
		"Falcon", "Eagle", "Hawk", "Phoenix", "Dragon", "Tiger", "Lion", "Wolf",
		"Panther", "Cheetah", "Viper", "Cobra", "Shark", "Whale", "Dolphin", "Orca",
		"Otter", "Badger", "Raven", "Lynx", "Puma", "Heron", "Crane", "Fox",
	}
)

// GenerateDisplayName creates a memorable display name for a virtual
// participant, e.g. SwiftFalcon-7X2K. The caller supplies the RNG so runs
// are reproducible.
func GenerateDisplayName(r *rand.Rand) string {
	adjective := adjectives[r.Intn(len(adjectives))]
	animal := animals[r.Intn(len(animals))]
	return fmt.Sprintf("%s%s-%s", adjective, animal, uniqueSuffix(r))
}

// uniqueSuffix creates a short identifier so duplicate word picks still
// produce distinct names.
func uniqueSuffix(r *rand.Rand) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = charset[r.Intn(len(charset))]
	}
	return string(suffix)
}
