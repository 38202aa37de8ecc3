package export

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/proptrust/proptrust/internal/repository"
)

// Service produces XLSX bytes for the verification register.
type Service struct {
	verifications repository.VerificationRepository
	logger        *slog.Logger
}

func NewService(verifications repository.VerificationRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{verifications: verifications, logger: logger}
}

// RegisterXLSX returns an XLSX workbook of the most recent verification
// records, newest first.
func (s *Service) RegisterXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	recs, err := s.verifications.ListRecords(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Verifications"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		s.logger.Warn("export.delete_default_sheet_failed", "error", err)
	}

	headers := []string{
		"Verified At",
		"Property ID",
		"Verification ID",
		"Risk Score",
		"Risk Level",
		"Classification",
		"Fingerprint",
		"Anchor Reference",
		"Block Height",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.CreatedAt.UTC().Format(time.RFC3339))
		write(2, r.PropertyID)
		write(3, r.VerificationID.String())
		write(4, r.RiskScore)
		write(5, string(r.RiskLevel))
		write(6, string(r.ClassificationLabel))
		write(7, hex.EncodeToString(r.Fingerprint))
		if r.AnchorReference != nil {
			write(8, *r.AnchorReference)
		}
		if r.AnchorBlockHeight != nil {
			write(9, *r.AnchorBlockHeight)
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 22)
	_ = f.SetColWidth(sheet, "B", "C", 40)
	_ = f.SetColWidth(sheet, "D", "F", 14)
	_ = f.SetColWidth(sheet, "G", "H", 68)
	_ = f.SetColWidth(sheet, "I", "I", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
