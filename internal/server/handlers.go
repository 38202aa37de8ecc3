package server

import (
	"encoding/hex"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/engine"
	"github.com/proptrust/proptrust/internal/entity"
)

type ledgerBody struct {
	Stored         bool   `json:"stored"`
	FingerprintHex string `json:"fingerprint_hex"`
	Reference      string `json:"reference,omitempty"`
	BlockHeight    *int64 `json:"block_height,omitempty"`
}

type verifyResponse struct {
	PropertyID      string                `json:"property_id"`
	VerificationID  string                `json:"verification_id"`
	RiskScore       int                   `json:"risk_score"`
	RiskLevel       string                `json:"risk_level"`
	Entities        entity.EntityBundle   `json:"entities"`
	Classification  entity.Classification `json:"classification"`
	Factors         []entity.RiskFactor   `json:"factors"`
	Recommendations []string              `json:"recommendations"`
	Warnings        []string              `json:"warnings,omitempty"`
	Ledger          ledgerBody            `json:"ledger"`
}

// VerifyUpload handles POST /verify/upload (multipart: file, document_type,
// store_on_ledger).
func (h *Handler) VerifyUpload(c echo.Context) error {
	doc, format, err := h.readUpload(c)
	if err != nil {
		return err
	}

	declared, _ := constants.ParseDocumentType(c.FormValue("document_type"))
	anchor, _ := strconv.ParseBool(c.FormValue("store_on_ledger"))

	res, err := h.Engine.Verify(c.Request().Context(), engine.VerifyRequest{
		Document:     doc,
		Format:       format,
		DeclaredType: declared,
		PropertyID:   c.FormValue("property_id"),
		Anchor:       anchor,
	})
	if err != nil {
		return err
	}

	lb := ledgerBody{
		Stored:         res.Anchored,
		FingerprintHex: hex.EncodeToString(res.Record.Fingerprint),
	}
	if res.Record.AnchorReference != nil {
		lb.Reference = *res.Record.AnchorReference
	}
	lb.BlockHeight = res.Record.AnchorBlockHeight

	return c.JSON(http.StatusOK, verifyResponse{
		PropertyID:     res.Record.PropertyID,
		VerificationID: res.Record.VerificationID.String(),
		RiskScore:      res.Record.RiskScore,
		RiskLevel:      string(res.Record.RiskLevel),
		Entities:       res.Detail.Entities,
		Classification: entity.Classification{
			Label:      res.Record.ClassificationLabel,
			Confidence: res.Record.ClassificationConfidence,
		},
		Factors:         res.Detail.Factors,
		Recommendations: res.Detail.Recommendations,
		Warnings:        res.Detail.Warnings,
		Ledger:          lb,
	})
}

type tamperResponse struct {
	PropertyID               string   `json:"property_id"`
	Status                   string   `json:"status"`
	HashMatched              bool     `json:"hash_matched"`
	AnchoredFingerprintHex   string   `json:"anchored_fingerprint_hex,omitempty"`
	RecomputedFingerprintHex string   `json:"recomputed_fingerprint_hex,omitempty"`
	RiskScoreDelta           int      `json:"risk_score_delta"`
	Warnings                 []string `json:"warnings,omitempty"`
}

// TamperCheck handles POST /tamper/check?property_id=... (multipart file).
func (h *Handler) TamperCheck(c echo.Context) error {
	propertyID := c.QueryParam("property_id")
	if propertyID == "" {
		propertyID = c.FormValue("property_id")
	}
	doc, format, err := h.readUpload(c)
	if err != nil {
		return err
	}

	check, err := h.Engine.CheckTamper(c.Request().Context(), propertyID, doc, format)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tamperResponse{
		PropertyID:               check.PropertyID,
		Status:                   string(check.Status),
		HashMatched:              check.HashMatched,
		AnchoredFingerprintHex:   hex.EncodeToString(check.AnchoredFingerprint),
		RecomputedFingerprintHex: hex.EncodeToString(check.RecomputedFingerprint),
		RiskScoreDelta:           check.RiskScoreDelta,
		Warnings:                 check.Warnings,
	})
}

type verificationView struct {
	Record entity.VerificationRecord `json:"record"`
	Detail entity.VerificationDetail `json:"detail"`
}

// GetVerification handles GET /verification/:property_id.
func (h *Handler) GetVerification(c echo.Context) error {
	rec, det, err := h.Engine.LatestVerification(c.Request().Context(), c.Param("property_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, verificationView{Record: rec, Detail: det})
}

// DeleteVerification handles DELETE /verification/:property_id.
func (h *Handler) DeleteVerification(c echo.Context) error {
	if err := h.Engine.DeleteProperty(c.Request().Context(), c.Param("property_id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// LedgerStatus handles GET /ledger/status.
func (h *Handler) LedgerStatus(c echo.Context) error {
	status, err := h.Ledger.Status(c.Request().Context())
	if err != nil {
		// connectivity failures are the answer here, not an error
		status.Connected = false
		h.Logger.Warn("ledger.status.failed", "error", err)
	}
	return c.JSON(http.StatusOK, status)
}

// Statistics handles GET /statistics.
func (h *Handler) Statistics(c echo.Context) error {
	stats, err := h.Stats.Statistics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// AuditLogs handles GET /audit?property_id=&limit=.
func (h *Handler) AuditLogs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	logs, err := h.Audits.ListRecent(c.Request().Context(), c.QueryParam("property_id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, logs)
}

// ExportRegister handles GET /verifications/export.
func (h *Handler) ExportRegister(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	data, err := h.Export.RegisterXLSX(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	name := "verifications-" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// readUpload pulls the multipart "file" field and derives a format hint from
// its extension, falling back to magic-byte sniffing in the extractor.
func (h *Handler) readUpload(c echo.Context) ([]byte, constants.Format, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", common.NewAppError(common.KindBadInput, "MISSING_FILE", "multipart field 'file' is required", err)
	}
	if fh.Size > h.MaxUploadBytes {
		return nil, "", common.NewAppError(common.KindBadInput, "FILE_TOO_LARGE", "document exceeds the upload limit", common.ErrInvalidInput)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, "", common.NewAppError(common.KindBadInput, "UNREADABLE_FILE", "could not open upload", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			h.Logger.Warn("upload.close_failed", "error", cerr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(src, h.MaxUploadBytes+1))
	if err != nil {
		return nil, "", common.NewAppError(common.KindBadInput, "UNREADABLE_FILE", "could not read upload", err)
	}
	if int64(len(data)) > h.MaxUploadBytes {
		return nil, "", common.NewAppError(common.KindBadInput, "FILE_TOO_LARGE", "document exceeds the upload limit", common.ErrInvalidInput)
	}

	return data, constants.MapExtToFormat(filepath.Ext(fh.Filename)), nil
}
