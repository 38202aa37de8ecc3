package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
)

// baseBlockHeight is where the local chain starts counting. A realistic
// offset keeps local handles visually distinct from row ids.
const baseBlockHeight = 1_000_000

// localEntry is the row shape for the ledger_entries table. BlockHeight is
// the primary key; PrevBlockHeight links a property's entries into its
// history chain (nil for the first anchor).
type localEntry struct {
	BlockHeight     int64     `gorm:"column:block_height;primaryKey"`
	PropertyID      string    `gorm:"column:property_id;size:100;index;not null"`
	Fingerprint     []byte    `gorm:"column:fingerprint;size:32;not null"`
	RiskScore       int       `gorm:"column:risk_score;not null"`
	Verifier        string    `gorm:"column:verifier;size:200"`
	LedgerTimestamp time.Time `gorm:"column:ledger_timestamp;not null"`
	PrevBlockHeight *int64    `gorm:"column:prev_block_height"`
}

func (localEntry) TableName() string { return "ledger_entries" }

// Local is the reference backend: a deterministic, append-only store in the
// engine's own relational database.
type Local struct {
	db       *gorm.DB
	verifier string
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex // serializes height allocation across concurrent puts
}

func NewLocal(db *gorm.DB, verifier string, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&localEntry{}); err != nil {
		return nil, fmt.Errorf("migrate ledger_entries: %w", err)
	}
	return &Local{db: db, verifier: verifier, logger: logger, now: time.Now}, nil
}

// WithClock overrides the timestamp source; tests use this.
func (l *Local) WithClock(now func() time.Time) *Local {
	l.now = now
	return l
}

func (l *Local) Put(ctx context.Context, propertyID string, fingerprint []byte, riskScore int) (PutResult, error) {
	if len(fingerprint) != sha256.Size {
		return PutResult{}, fmt.Errorf("%w: fingerprint must be %d bytes, got %d", ErrRejected, sha256.Size, len(fingerprint))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var res PutResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxHeight int64
		if err := tx.Model(&localEntry{}).Select("COALESCE(MAX(block_height), 0)").Scan(&maxHeight).Error; err != nil {
			return fmt.Errorf("read chain tip: %w", err)
		}
		height := maxHeight + 1
		if maxHeight == 0 {
			height = baseBlockHeight + 1
		}

		var prev *int64
		var latest localEntry
		switch err := tx.Where("property_id = ?", propertyID).Order("block_height DESC").First(&latest).Error; {
		case err == nil:
			prev = &latest.BlockHeight
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first anchor for this property
		default:
			return fmt.Errorf("read latest entry: %w", err)
		}

		ts := l.now().UTC().Truncate(time.Second)
		row := localEntry{
			BlockHeight:     height,
			PropertyID:      propertyID,
			Fingerprint:     append([]byte(nil), fingerprint...),
			RiskScore:       riskScore,
			Verifier:        l.verifier,
			LedgerTimestamp: ts,
			PrevBlockHeight: prev,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("append entry: %w", err)
		}

		res = PutResult{
			Handle:          handleFor(propertyID, fingerprint, height),
			BlockHeight:     height,
			LedgerTimestamp: ts,
		}
		return nil
	})
	if err != nil {
		l.logger.Error("ledger.put.failed", "property_id", propertyID, "error", err)
		return PutResult{}, err
	}

	l.logger.Info("ledger.put.ok",
		"property_id", propertyID,
		"block_height", res.BlockHeight,
		"handle", res.Handle,
	)
	return res, nil
}

func (l *Local) Get(ctx context.Context, propertyID string) (Entry, error) {
	var row localEntry
	err := l.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("block_height DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read entry: %w", err)
	}
	return Entry{
		PropertyID:      row.PropertyID,
		Fingerprint:     row.Fingerprint,
		RiskScore:       row.RiskScore,
		Verifier:        row.Verifier,
		BlockHeight:     row.BlockHeight,
		LedgerTimestamp: row.LedgerTimestamp,
	}, nil
}

func (l *Local) History(ctx context.Context, propertyID string) ([][]byte, error) {
	var rows []localEntry
	err := l.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("block_height ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	// all but the latest, oldest first
	out := make([][]byte, 0, len(rows)-1)
	for _, r := range rows[:len(rows)-1] {
		out = append(out, r.Fingerprint)
	}
	return out, nil
}

func (l *Local) Verify(ctx context.Context, propertyID string, fingerprint []byte) (bool, error) {
	e, err := l.Get(ctx, propertyID)
	if err != nil {
		return false, err
	}
	return bytes.Equal(e.Fingerprint, fingerprint), nil
}

func (l *Local) Status(ctx context.Context) (Status, error) {
	var total int64
	if err := l.db.WithContext(ctx).Model(&localEntry{}).Count(&total).Error; err != nil {
		return Status{Backend: "local"}, fmt.Errorf("count entries: %w", err)
	}
	var maxHeight int64
	if err := l.db.WithContext(ctx).Model(&localEntry{}).Select("COALESCE(MAX(block_height), 0)").Scan(&maxHeight).Error; err != nil {
		return Status{Backend: "local"}, fmt.Errorf("read chain tip: %w", err)
	}
	if maxHeight == 0 {
		maxHeight = baseBlockHeight
	}
	return Status{
		Connected:         true,
		Backend:           "local",
		LatestBlockHeight: maxHeight,
		TotalEntries:      total,
	}, nil
}

func (l *Local) Close() error { return nil }

// handleFor derives a chain-style transaction handle. Deterministic in the
// entry's identity, so re-running a test suite yields stable handles.
func handleFor(propertyID string, fingerprint []byte, height int64) string {
	h := sha256.New()
	h.Write([]byte(propertyID))
	h.Write(fingerprint)
	_, _ = fmt.Fprintf(h, "%d", height)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
