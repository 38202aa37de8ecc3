// Package engine drives the verification pipeline end to end: extraction,
// cleaning, translation, entity and classification stages, risk scoring,
// canonicalization, persistence, and anchoring. All external capabilities
// are injected; the engine holds no global state.
package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/proptrust/proptrust/internal/classify"
	"github.com/proptrust/proptrust/internal/extract"
	"github.com/proptrust/proptrust/internal/ledger"
	"github.com/proptrust/proptrust/internal/metrics"
	"github.com/proptrust/proptrust/internal/ner"
	"github.com/proptrust/proptrust/internal/repository"
	"github.com/proptrust/proptrust/internal/risk"
	"github.com/proptrust/proptrust/internal/translate"
)

// Clock supplies the engine's notion of now; injected so scoring of
// validity windows and record timestamps are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the production clock.
func SystemClock() Clock { return systemClock{} }

// IDGenerator allocates property and verification identifiers.
type IDGenerator interface {
	NewPropertyID() string
	NewVerificationID() uuid.UUID
	NewTamperCheckID() uuid.UUID
}

type uuidGenerator struct{}

// NewPropertyID returns an opaque, globally unique id in the PRT- form the
// registry operators are used to reading.
func (uuidGenerator) NewPropertyID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "PRT-" + raw[:12]
}

func (uuidGenerator) NewVerificationID() uuid.UUID { return uuid.New() }
func (uuidGenerator) NewTamperCheckID() uuid.UUID  { return uuid.New() }

// UUIDGenerator is the production id source.
func UUIDGenerator() IDGenerator { return uuidGenerator{} }

// Timeouts carries the per-stage deadlines.
type Timeouts struct {
	Extraction     time.Duration // default 60s
	Translation    time.Duration // default 30s
	Classification time.Duration // default 20s
	Ledger         time.Duration // default 30s
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Extraction <= 0 {
		t.Extraction = 60 * time.Second
	}
	if t.Translation <= 0 {
		t.Translation = 30 * time.Second
	}
	if t.Classification <= 0 {
		t.Classification = 20 * time.Second
	}
	if t.Ledger <= 0 {
		t.Ledger = 30 * time.Second
	}
	return t
}

// Config tunes engine behavior that is not a capability.
type Config struct {
	Timeouts        Timeouts
	ConfidenceFloor float64 // classifier floor, default 0.5
	PreviewMaxChars int     // cleaned-text preview bound, default 2000
}

func (c Config) withDefaults() Config {
	c.Timeouts = c.Timeouts.withDefaults()
	if c.ConfidenceFloor <= 0 {
		c.ConfidenceFloor = 0.5
	}
	if c.PreviewMaxChars <= 0 {
		c.PreviewMaxChars = 2000
	}
	return c
}

// Deps are the injected capabilities and stores.
type Deps struct {
	Extractor  extract.TextExtractor
	Translator translate.Translator
	Entities   *ner.Extractor
	Classifier classify.Classifier
	Scorer     *risk.Scorer
	Ledger     ledger.Ledger

	Verifications repository.VerificationRepository
	Tampers       repository.TamperRepository
	Audits        repository.AuditRepository

	Clock   Clock
	IDs     IDGenerator
	Metrics *metrics.Metrics
}
