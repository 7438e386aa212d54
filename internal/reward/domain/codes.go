package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/noirepd/precinct/internal/shared/config"
)

const (
	digits = "0123456789"
	// rewardAlphabet drops characters that are easy to misread aloud
	rewardAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// CodeGenerator produces the numeric tracking code and the shorter
// citizen-facing reward code of an approved report.
type CodeGenerator struct {
	trackingLength int
	rewardLength   int
	random         io.Reader
}

func NewCodeGenerator(cfg config.WorkflowConfig) *CodeGenerator {
	return &CodeGenerator{
		trackingLength: cfg.TrackingCodeLength,
		rewardLength:   cfg.RewardCodeLength,
		random:         rand.Reader,
	}
}

// WithRandom replaces the entropy source.
func (g *CodeGenerator) WithRandom(r io.Reader) *CodeGenerator {
	g.random = r
	return g
}

// Tracking returns a fresh numeric tracking code
func (g *CodeGenerator) Tracking() (string, error) {
	return g.generate(digits, g.trackingLength)
}

// Reward returns a fresh alphanumeric reward code
func (g *CodeGenerator) Reward() (string, error) {
	return g.generate(rewardAlphabet, g.rewardLength)
}

func (g *CodeGenerator) generate(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(g.random, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
