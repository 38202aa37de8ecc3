package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/classify"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/engine"
	"github.com/proptrust/proptrust/internal/export"
	"github.com/proptrust/proptrust/internal/ledger"
	"github.com/proptrust/proptrust/internal/ner"
	"github.com/proptrust/proptrust/internal/ocr"
	"github.com/proptrust/proptrust/internal/repository"
	"github.com/proptrust/proptrust/internal/risk"
	"github.com/proptrust/proptrust/internal/translate"
)

// runtime bundles everything a subcommand needs, plus its teardown.
type runtime struct {
	engine        *engine.Orchestrator
	chain         ledger.Ledger
	verifications repository.VerificationRepository
	close         func()
}

func buildRuntime(logger *slog.Logger) (*runtime, error) {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := repository.Open(repository.Config{
		Backend: cfg.Database.Backend,
		Path:    cfg.Database.Path,
		DSN:     cfg.Database.DSN,
	}, logger)
	if err != nil {
		return nil, err
	}

	var chain ledger.Ledger
	switch cfg.Ledger.Backend {
	case "remote":
		chain = ledger.NewRemote(cfg.Ledger.Endpoint, cfg.Ledger.Identity,
			&http.Client{Timeout: cfg.Ledger.Timeout}, logger)
	default:
		chain, err = ledger.NewLocal(db, cfg.Ledger.Identity, logger)
		if err != nil {
			repository.Close(db, logger)
			return nil, err
		}
	}

	var translator translate.Translator = translate.Passthrough{}
	if cfg.Translator.Endpoint != "" {
		translator, err = translate.NewClient(translate.Config{
			Endpoint:      cfg.Translator.Endpoint,
			CacheCapacity: cfg.Cache.TranslationCapacity,
		}, &http.Client{Timeout: cfg.Translator.Timeout}, logger)
		if err != nil {
			repository.Close(db, logger)
			return nil, err
		}
	}

	var classifier classify.Classifier = classify.NewRules()
	if cfg.Classifier.Backend == "remote" {
		classifier = classify.NewRemote(cfg.Classifier.Endpoint,
			&http.Client{Timeout: cfg.Classifier.Timeout}, logger)
	}

	verifications := repository.NewVerificationRepository(db, logger)
	orchestrator := engine.NewOrchestrator(engine.Config{
		Timeouts: engine.Timeouts{
			Extraction:     cfg.Extraction.Timeout,
			Translation:    cfg.Translator.Timeout,
			Classification: cfg.Classifier.Timeout,
			Ledger:         cfg.Ledger.Timeout,
		},
		ConfidenceFloor: cfg.Classifier.ConfidenceFloor,
	}, engine.Deps{
		Extractor: ocr.NewExtractor(ocr.Config{
			TesseractLang: cfg.Extraction.TesseractLang,
			TessdataDir:   cfg.Extraction.TessdataDir,
			DPI:           cfg.Extraction.DPI,
			MaxPages:      cfg.Extraction.MaxPages,
		}, logger),
		Translator:    translator,
		Entities:      ner.NewExtractor(nerModel(cfg, logger), cfg.NER.ModelFloor, logger),
		Classifier:    classifier,
		Scorer:        risk.NewScorer(cfg.Risk.DataQualityCharsFloor),
		Ledger:        chain,
		Verifications: verifications,
		Tampers:       repository.NewTamperRepository(db, logger),
		Audits:        repository.NewAuditRepository(db, logger),
	}, logger)

	return &runtime{
		engine:        orchestrator,
		chain:         chain,
		verifications: verifications,
		close: func() {
			_ = translator.Close()
			_ = chain.Close()
			repository.Close(db, logger)
		},
	}, nil
}

func nerModel(cfg *common.Config, logger *slog.Logger) ner.Model {
	if cfg.NER.Endpoint == "" {
		return ner.NopModel{}
	}
	return ner.NewModelClient(cfg.NER.Endpoint, &http.Client{Timeout: cfg.Extraction.Timeout}, logger)
}

func readDocument(path string) ([]byte, constants.Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", common.NewAppError(common.KindBadInput, "UNREADABLE_FILE",
			fmt.Sprintf("reading %s", path), err)
	}
	return data, constants.MapExtToFormat(filepath.Ext(path)), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVerifyCmd(logger *slog.Logger) *cobra.Command {
	var docType, propertyID string
	var anchor, ignoreLedgerFailure bool

	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Run the verification pipeline on a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(logger)
			if err != nil {
				return err
			}
			defer rt.close()

			doc, format, err := readDocument(args[0])
			if err != nil {
				return err
			}
			declared, _ := constants.ParseDocumentType(docType)

			res, err := rt.engine.Verify(cmd.Context(), engine.VerifyRequest{
				Document:     doc,
				Format:       format,
				DeclaredType: declared,
				PropertyID:   propertyID,
				Anchor:       anchor,
			})
			if err != nil {
				return err
			}
			if err := printJSON(res.Record); err != nil {
				return err
			}
			if anchor && !res.Anchored && !ignoreLedgerFailure {
				return common.NewAppError(common.KindLedgerRejected, "ANCHOR_FAILED",
					"record persisted but not anchored", nil)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&docType, "type", "RTC", "declared document type (RTC|MR|EC|SALE_DEED)")
	cmd.Flags().StringVar(&propertyID, "property-id", "", "re-verify an existing property instead of allocating one")
	cmd.Flags().BoolVar(&anchor, "anchor", false, "anchor the fingerprint on the ledger")
	cmd.Flags().BoolVar(&ignoreLedgerFailure, "ignore-ledger-failure", false, "exit 0 even when anchoring fails")
	return cmd
}

func newTamperCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "tamper-check <property-id> <file>",
		Short: "Compare a fresh document against the anchored fingerprint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(logger)
			if err != nil {
				return err
			}
			defer rt.close()

			doc, format, err := readDocument(args[1])
			if err != nil {
				return err
			}
			check, err := rt.engine.CheckTamper(cmd.Context(), args[0], doc, format)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"property_id":                check.PropertyID,
				"status":                     string(check.Status),
				"hash_matched":               check.HashMatched,
				"anchored_fingerprint_hex":   hex.EncodeToString(check.AnchoredFingerprint),
				"recomputed_fingerprint_hex": hex.EncodeToString(check.RecomputedFingerprint),
				"risk_score_delta":           check.RiskScoreDelta,
				"warnings":                   check.Warnings,
			})
		},
	}
}

func newLedgerStatusCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger-status",
		Short: "Report ledger connectivity and chain tip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(logger)
			if err != nil {
				return err
			}
			defer rt.close()

			status, err := rt.chain.Status(cmd.Context())
			if err != nil {
				return common.NewAppError(common.KindExternalUnavailable, "LEDGER_STATUS",
					"ledger unreachable", err)
			}
			return printJSON(status)
		},
	}
}

func newExportCmd(logger *slog.Logger) *cobra.Command {
	var out string
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the verification register as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(logger)
			if err != nil {
				return err
			}
			defer rt.close()

			data, err := export.NewService(rt.verifications, logger).RegisterXLSX(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return common.NewAppError(common.KindInternal, "WRITE_FAILED",
					fmt.Sprintf("writing %s", out), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "verifications.xlsx", "output path")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = default cap)")
	return cmd
}
