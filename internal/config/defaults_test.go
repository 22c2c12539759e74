package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_RankerWeightsSumToOne(t *testing.T) {
	d := DefaultConfig().Discovery
	sum := d.LexicalWeight + d.SemanticWeight + d.KeywordWeight
	assert.InDelta(t, 1.0, sum, 0.0001)
}

func TestDefaultConfig_FrontendIsStdio(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "stdio", cfg.Frontend.Transport)
}

func TestDefaultConfig_ConflictPolicyIsPrefixWithProvider(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ConflictPrefixWithProvider, cfg.Registry.ConflictPolicy)
}
