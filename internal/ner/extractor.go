// Package ner extracts the fixed field schema from cleaned record text.
// The rule layer is authoritative for singleton fields; the trained model
// fills gaps and widens list fields. Extraction failures are soft: a field
// that matches nothing is simply absent.
package ner

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/proptrust/proptrust/internal/entity"
)

// WarnModelUnavailable annotates an extraction that ran on rules alone.
const WarnModelUnavailable = "ner_model_unavailable"

const contextWindow = 60 // bytes of surrounding text kept per loan/mutation

type Extractor struct {
	model  Model
	floor  float64 // model spans below this confidence are ignored
	logger *slog.Logger
}

func NewExtractor(model Model, confidenceFloor float64, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if model == nil {
		model = NopModel{}
	}
	if confidenceFloor <= 0 {
		confidenceFloor = 0.5
	}
	return &Extractor{model: model, floor: confidenceFloor, logger: logger}
}

// candidate is a rule or model span with resolution metadata.
type candidate struct {
	Span
	priority int // rule index; model candidates get a large constant
}

const modelPriority = 1 << 10

// ownerLabelStop cuts an owner value where another field's label follows the
// name on the same line ("Ravi Kumar Survey No." -> "Ravi Kumar").
var ownerLabelStop = regexp.MustCompile(`[ \t]+(?i:Survey|Sy|Hissa|Village|Taluka?|District|Extent|Area)\b.*$`)

// Extract runs both layers and resolves them into the bundle.
func (e *Extractor) Extract(ctx context.Context, text string) (entity.EntityBundle, []string) {
	var warnings []string

	byField := e.ruleCandidates(text)

	modelSpans, err := e.model.Spans(ctx, text)
	if err != nil {
		e.logger.Warn("ner.model.degraded", "error", err)
		warnings = append(warnings, WarnModelUnavailable)
	}
	for _, s := range modelSpans {
		if s.Confidence < e.floor {
			continue
		}
		if _, known := fieldRules[s.Field]; !known {
			// the extractor never invents fields outside the schema
			continue
		}
		s.Text = cleanValue(s.Text)
		if s.Text == "" {
			continue
		}
		byField[s.Field] = append(byField[s.Field], candidate{Span: s, priority: modelPriority})
	}

	var b entity.EntityBundle
	b.Owner = ownerLabelStop.ReplaceAllString(e.singleton(byField, FieldOwner, nil), "")
	b.SurveyNumber = e.singleton(byField, FieldSurvey, validSurveyNumber)
	b.HissaNumber = e.singleton(byField, FieldHissa, nil)
	b.Village = e.singleton(byField, FieldVillage, nil)
	b.Taluk = e.singleton(byField, FieldTaluk, nil)
	b.District = e.singleton(byField, FieldDistrict, nil)

	if extent := e.singleton(byField, FieldExtent, nil); extent != "" {
		if acres, guntas, ok := SplitExtent(extent); ok {
			b.ExtentAcres, b.ExtentGuntas = acres, guntas
		}
	}
	b.ValidFrom = isoDate(e.singleton(byField, FieldValidFrom, validDate))
	b.ValidTo = isoDate(e.singleton(byField, FieldValidTo, validDate))
	b.DigitallySignedDate = isoDate(e.singleton(byField, FieldSignedDate, validDate))

	b.Dates = e.list(byField, FieldDate, validDate)
	b.Cases = e.list(byField, FieldCase, nil)
	b.Loans = e.loans(text, byField)
	b.Mutations = e.mutations(text, byField)

	return b, warnings
}

// ruleCandidates runs every pattern and indexes candidates by field.
func (e *Extractor) ruleCandidates(text string) map[string][]candidate {
	byField := make(map[string][]candidate, len(fieldRules))
	for field, rules := range fieldRules {
		for prio, r := range rules {
			for _, m := range r.re.FindAllStringSubmatchIndex(text, -1) {
				if len(m) < 4 || m[2] < 0 {
					continue
				}
				val := cleanValue(text[m[2]:m[3]])
				if val == "" {
					continue
				}
				byField[field] = append(byField[field], candidate{
					Span:     Span{Field: field, Text: val, Confidence: 1.0, Start: m[2]},
					priority: prio,
				})
			}
		}
	}
	return byField
}

// singleton picks the highest-priority rule match, else the most confident
// model span, applying the optional validity filter to every candidate.
func (e *Extractor) singleton(byField map[string][]candidate, field string, valid func(string) bool) string {
	cands := byField[field]
	var best *candidate
	for i := range cands {
		c := &cands[i]
		if valid != nil && !valid(c.Text) {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		switch {
		case c.priority < best.priority:
			best = c
		case c.priority == best.priority && c.priority == modelPriority && c.Confidence > best.Confidence:
			best = c
		case c.priority == best.priority && c.priority < modelPriority && c.Start < best.Start:
			best = c
		}
	}
	if best == nil {
		return ""
	}
	return best.Text
}

// list unions rule and model spans, de-duplicates by normalized string and
// orders by first appearance in the source text.
func (e *Extractor) list(byField map[string][]candidate, field string, valid func(string) bool) []string {
	cands := byField[field]
	firstSeen := make(map[string]int, len(cands))
	display := make(map[string]string, len(cands))
	for _, c := range cands {
		if valid != nil && !valid(c.Text) {
			continue
		}
		key := dedupeKey(c.Text)
		if pos, ok := firstSeen[key]; !ok {
			firstSeen[key] = c.Start
			display[key] = c.Text
		} else if c.Start < pos {
			firstSeen[key] = c.Start
		}
	}
	type kv struct {
		key string
		pos int
	}
	order := make([]kv, 0, len(firstSeen))
	for k, pos := range firstSeen {
		order = append(order, kv{k, pos})
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].pos != order[j].pos {
			return order[i].pos < order[j].pos
		}
		return order[i].key < order[j].key
	})
	out := make([]string, 0, len(order))
	for _, o := range order {
		out = append(out, display[o.key])
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// loans builds one entry per distinct amount, attaching the nearest bank
// mention and a bounded context snippet.
func (e *Extractor) loans(text string, byField map[string][]candidate) []entity.Loan {
	banks := byField[FieldBank]
	seen := make(map[int64]bool)
	var loans []entity.Loan
	amounts := append([]candidate(nil), byField[FieldLoanAmount]...)
	sort.Slice(amounts, func(i, j int) bool { return amounts[i].Start < amounts[j].Start })
	for _, a := range amounts {
		amount, ok := NormalizeAmount(a.Text)
		if !ok || seen[amount] {
			continue
		}
		seen[amount] = true
		loans = append(loans, entity.Loan{
			Amount:  amount,
			Bank:    nearestBank(banks, a.Start),
			Context: snippet(text, a.Start),
		})
	}
	return loans
}

func (e *Extractor) mutations(text string, byField map[string][]candidate) []entity.Mutation {
	cands := append([]candidate(nil), byField[FieldMutation]...)
	sort.Slice(cands, func(i, j int) bool { return cands[i].Start < cands[j].Start })
	seen := make(map[string]bool)
	var out []entity.Mutation
	for _, c := range cands {
		key := dedupeKey(c.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		ctx := snippet(text, c.Start)
		out = append(out, entity.Mutation{
			RecordNumber: c.Text,
			Description:  ctx,
			Pending:      mutationPendingRe.MatchString(ctx),
		})
	}
	return out
}

func nearestBank(banks []candidate, pos int) string {
	best, bestDist := "", -1
	for _, bc := range banks {
		dist := bc.Start - pos
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = bc.Text, dist
		}
	}
	if best == "" {
		return ""
	}
	return CanonicalBankName(best)
}

func snippet(text string, pos int) string {
	lo := pos - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := pos + contextWindow
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !isASCIIBoundary(text[lo]) {
		lo--
	}
	for hi < len(text) && !isASCIIBoundary(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}

func isASCIIBoundary(b byte) bool {
	return b == ' ' || b == '\n'
}

// cleanValue trims and NFC-normalizes an output string.
func cleanValue(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func dedupeKey(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
