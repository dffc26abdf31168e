package fulfillment

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	EngineerReferencePrefix  = "ENG"
	LogisticsReferencePrefix = "LOG"

	referenceLength   = 8
	referenceAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// ReferenceGenerator produces booking references of the form PREFIX-xxxxxxxx (base36)
type ReferenceGenerator struct {
	source io.Reader
}

// NewReferenceGenerator reads randomness from crypto/rand
func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{source: rand.Reader}
}

// NewReferenceGeneratorFrom is used by tests to make references reproducible
func NewReferenceGeneratorFrom(source io.Reader) *ReferenceGenerator {
	return &ReferenceGenerator{source: source}
}

// Generate returns a reference for the given routing path
func (g *ReferenceGenerator) Generate(inHome bool) (string, error) {
	prefix := LogisticsReferencePrefix
	if inHome {
		prefix = EngineerReferencePrefix
	}

	base := big.NewInt(int64(len(referenceAlphabet)))
	buf := make([]byte, referenceLength)
	for i := range buf {
		n, err := rand.Int(g.source, base)
		if err != nil {
			return "", fmt.Errorf("failed to generate reference: %w", err)
		}
		buf[i] = referenceAlphabet[n.Int64()]
	}

	return prefix + "-" + string(buf), nil
}
