package utils

import (
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateDisplayNameShape(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	pattern := regexp.MustCompile(`^[A-Z][a-z]+[A-Z][a-z]+-[A-Z0-9]{4}$`)

	for i := 0; i < 100; i++ {
		name := GenerateDisplayName(r)
		assert.Regexp(t, pattern, name)
	}
}

func TestGenerateDisplayNameIsReproducible(t *testing.T) {
	a := GenerateDisplayName(rand.New(rand.NewSource(7)))
	b := GenerateDisplayName(rand.New(rand.NewSource(7)))
	assert.Equal(t, a, b)
}
