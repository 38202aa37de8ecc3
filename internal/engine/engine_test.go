package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/classify"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/entity"
	"github.com/proptrust/proptrust/internal/extract"
	"github.com/proptrust/proptrust/internal/ledger"
	"github.com/proptrust/proptrust/internal/ner"
	"github.com/proptrust/proptrust/internal/repository"
	"github.com/proptrust/proptrust/internal/risk"
	"github.com/proptrust/proptrust/internal/translate"
)

// stubExtractor turns the document bytes into the page text directly, which
// lets scenarios express a document as its would-be OCR output.
type stubExtractor struct {
	err error
}

func (s stubExtractor) Extract(_ context.Context, data []byte, _ constants.Format) (entity.ExtractionResult, error) {
	if s.err != nil {
		return entity.ExtractionResult{}, s.err
	}
	return entity.ExtractionResult{
		Pages:          []string{string(data)},
		PagesProcessed: 1,
		CharsOriginal:  len(data),
		LanguageHint:   "en",
		Method:         "stub",
	}, nil
}

var _ extract.TextExtractor = stubExtractor{}

// degradedTranslator mimics an unreachable provider: original text plus the
// standard warning.
type degradedTranslator struct{}

func (degradedTranslator) Translate(_ context.Context, text, _ string) (entity.TranslationResult, error) {
	return entity.TranslationResult{
		Text:     text,
		Warnings: []string{translate.WarnTranslationUnavailable},
	}, nil
}

func (degradedTranslator) Close() error { return nil }

// failingClassifier errors on every call.
type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string) (entity.Classification, error) {
	return entity.Classification{}, fmt.Errorf("classifier service down")
}

// offlineLedger refuses everything.
type offlineLedger struct{}

func (offlineLedger) Put(context.Context, string, []byte, int) (ledger.PutResult, error) {
	return ledger.PutResult{}, ledger.ErrUnavailable
}
func (offlineLedger) Get(context.Context, string) (ledger.Entry, error) {
	return ledger.Entry{}, ledger.ErrUnavailable
}
func (offlineLedger) History(context.Context, string) ([][]byte, error) {
	return nil, ledger.ErrUnavailable
}
func (offlineLedger) Verify(context.Context, string, []byte) (bool, error) {
	return false, ledger.ErrUnavailable
}
func (offlineLedger) Status(context.Context) (ledger.Status, error) {
	return ledger.Status{Backend: "offline"}, ledger.ErrUnavailable
}
func (offlineLedger) Close() error { return nil }

// seqIDs hands out deterministic identifiers.
type seqIDs struct {
	n atomic.Int64
}

func (s *seqIDs) NewPropertyID() string {
	return fmt.Sprintf("PRT-TEST-%03d", s.n.Add(1))
}

func (s *seqIDs) NewVerificationID() uuid.UUID { return uuid.New() }
func (s *seqIDs) NewTamperCheckID() uuid.UUID  { return uuid.New() }

// fixedClock ticks forward a second per call so created_at stays monotone.
type fixedClock struct {
	base time.Time
	n    atomic.Int64
}

func (c *fixedClock) Now() time.Time {
	return c.base.Add(time.Duration(c.n.Add(1)) * time.Second)
}

type testEnv struct {
	orch          *Orchestrator
	chain         ledger.Ledger
	db            *gorm.DB
	verifications repository.VerificationRepository
	tampers       repository.TamperRepository
	audits        repository.AuditRepository
}

type envOption func(*Deps)

func withLedger(l ledger.Ledger) envOption {
	return func(d *Deps) { d.Ledger = l }
}

func withTranslator(tr translate.Translator) envOption {
	return func(d *Deps) { d.Translator = tr }
}

func withClassifier(c classify.Classifier) envOption {
	return func(d *Deps) { d.Classifier = c }
}

func withExtractor(e extract.TextExtractor) envOption {
	return func(d *Deps) { d.Extractor = e }
}

func newEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db, err := repository.Open(repository.Config{Backend: "sqlite", Path: ":memory:"}, nil)
	require.NoError(t, err)

	chain, err := ledger.NewLocal(db, "test-verifier", nil)
	require.NoError(t, err)

	verifications := repository.NewVerificationRepository(db, nil)
	tampers := repository.NewTamperRepository(db, nil)
	audits := repository.NewAuditRepository(db, nil)

	deps := Deps{
		Extractor:     stubExtractor{},
		Translator:    translate.Passthrough{},
		Entities:      ner.NewExtractor(ner.NopModel{}, 0.5, nil),
		Classifier:    classify.NewRules(),
		Scorer:        risk.NewScorer(200),
		Ledger:        chain,
		Verifications: verifications,
		Tampers:       tampers,
		Audits:        audits,
		Clock:         &fixedClock{base: time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)},
		IDs:           &seqIDs{},
	}
	for _, opt := range opts {
		opt(&deps)
	}

	orch := NewOrchestrator(Config{ConfidenceFloor: 0.5}, deps, nil)
	return &testEnv{
		orch:          orch,
		chain:         deps.Ledger,
		db:            db,
		verifications: verifications,
		tampers:       tampers,
		audits:        audits,
	}
}

func hasAudit(t *testing.T, env *testEnv, op constants.Operation, status constants.AuditStatus) bool {
	t.Helper()
	logs, err := env.audits.ListRecent(context.Background(), "", 100)
	require.NoError(t, err)
	for _, l := range logs {
		if l.Operation == op && l.Status == status {
			return true
		}
	}
	return false
}

func errorKind(err error) common.Kind { return common.KindOf(err) }
