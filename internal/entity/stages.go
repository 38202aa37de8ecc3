package entity

import "github.com/proptrust/proptrust/constants"

// ExtractionResult is the output of the text-extraction stage.
type ExtractionResult struct {
	Pages          []string `json:"pages"`
	PagesProcessed int      `json:"pages_processed"`
	CharsOriginal  int      `json:"chars_original"`
	LanguageHint   string   `json:"language_hint,omitempty"` // BCP-47-ish, e.g. "kn", "en"
	Method         string   `json:"method"`                  // "pdf-text" | "pdf-ocr" | "image-ocr"
	Warnings       []string `json:"warnings,omitempty"`
}

// Text joins the page strings with the page-break marker used downstream.
func (r ExtractionResult) Text() string {
	out := ""
	for i, p := range r.Pages {
		if i > 0 {
			out += "\n\f\n"
		}
		out += p
	}
	return out
}

// TranslationResult is the output of the (optional) translation stage.
type TranslationResult struct {
	Text       string   `json:"text"`
	Translated bool     `json:"translated"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Classification is the document classifier's verdict.
type Classification struct {
	Label      constants.ClassificationLabel `json:"label"`
	Confidence float64                       `json:"confidence"`
}

// OCRStats carries raw extraction statistics into the verification detail.
// Excluded from the canonical projection.
type OCRStats struct {
	PagesProcessed int    `json:"pages_processed"`
	CharsOriginal  int    `json:"chars_original"`
	CharsCleaned   int    `json:"chars_cleaned"`
	LanguageHint   string `json:"language_hint,omitempty"`
	Method         string `json:"method,omitempty"`
}
