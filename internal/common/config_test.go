package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "sqlite", cfg.Database.Backend)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Translator.Timeout)
	assert.Equal(t, 20*time.Second, cfg.Classifier.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, 0.5, cfg.Classifier.ConfidenceFloor)
	assert.Equal(t, 200, cfg.Risk.DataQualityCharsFloor)
	assert.Equal(t, 1024, cfg.Cache.TranslationCapacity)
	assert.Equal(t, "local", cfg.Ledger.Backend)
	assert.Equal(t, "proptrust-engine", cfg.Ledger.Identity)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ENGINE_LEDGER_BACKEND", "remote")
	t.Setenv("ENGINE_LEDGER_ENDPOINT", "http://chain.internal:8545")
	t.Setenv("ENGINE_EXTRACTION_TIMEOUT_MS", "5000")
	t.Setenv("ENGINE_CLASSIFIER_CONFIDENCE_FLOOR", "0.7")

	cfg := LoadConfig()
	assert.Equal(t, "remote", cfg.Ledger.Backend)
	assert.Equal(t, "http://chain.internal:8545", cfg.Ledger.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 0.7, cfg.Classifier.ConfidenceFloor)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsIncompleteRemoteLedger(t *testing.T) {
	t.Setenv("ENGINE_LEDGER_BACKEND", "remote")
	t.Setenv("ENGINE_LEDGER_ENDPOINT", "")

	cfg := LoadConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, KindBadInput, KindOf(err))
}

func TestValidateRejectsBadFloor(t *testing.T) {
	t.Setenv("ENGINE_CLASSIFIER_CONFIDENCE_FLOOR", "1.5")
	err := LoadConfig().Validate()
	require.Error(t, err)
}
