package ner

import "regexp"

// Field names in the fixed extraction schema. The extractor never emits a
// field outside this set.
const (
	FieldOwner      = "owner"
	FieldSurvey     = "survey_number"
	FieldHissa      = "hissa_number"
	FieldVillage    = "village"
	FieldTaluk      = "taluk"
	FieldDistrict   = "district"
	FieldExtent     = "extent"
	FieldLoanAmount = "loan_amount"
	FieldBank       = "bank"
	FieldCase       = "case_number"
	FieldDate       = "date"
	FieldMutation   = "mutation"
	FieldValidFrom  = "valid_from"
	FieldValidTo    = "valid_to"
	FieldSignedDate = "digitally_signed_date"
)

// rule is one named pattern. Rules for the same field are tried in slice
// order; priority is the index (lower wins for singleton fields).
type rule struct {
	name string
	re   *regexp.Regexp
}

// The pattern set mirrors the labels found on RTC, MR and EC forms from the
// Karnataka revenue portals, post-translation. Group 1 is always the value.
var fieldRules = map[string][]rule{
	FieldSurvey: {
		{"survey_labelled", regexp.MustCompile(`(?i)Survey\s*(?:No|Number)\.?\s*[:\-]?\s*(\d{1,4}(?:[/\-]\d{1,3})?[A-Za-z]?)`)},
		{"survey_abbrev", regexp.MustCompile(`(?i)(?:Sy|S)\.?\s*No\.?\s*[:\-]?\s*(\d{1,4}(?:[/\-]\d{1,3})?[A-Za-z]?)`)},
		{"survey_bare", regexp.MustCompile(`\b(\d{1,4}[/\-]\d{1,3}[A-Za-z]?)\b`)},
	},
	FieldHissa: {
		{"hissa_labelled", regexp.MustCompile(`(?i)Hissa\s*(?:No|Number)?\.?\s*[:\-]?\s*(\d{1,3}[A-Za-z]?)`)},
	},
	FieldOwner: {
		// label matching is case-insensitive; captured name tokens must be
		// capitalized and space-separated, so a lowercase word ends the name
		{"owner_labelled", regexp.MustCompile(`(?i:(?:Owner|Holder|Khatedar|Pattadar|Cultivator)(?:[ \t]+Name)?)[ \t]*[:\-][ \t]*([A-Z][A-Za-z.]*(?:[ \t]+[A-Z][A-Za-z.]*){0,3})`)},
		{"name_labelled", regexp.MustCompile(`\b(?i:Name)[ \t]*[:\-][ \t]*([A-Z][A-Za-z.]*(?:[ \t]+[A-Z][A-Za-z.]*){0,3})`)},
	},
	FieldVillage: {
		{"village_labelled", regexp.MustCompile(`(?i:Village)[ \t]*[:\-]?[ \t]+([A-Z][A-Za-z]+)`)},
		{"gramam_labelled", regexp.MustCompile(`(?i:Grama(?:m)?)[ \t]*[:\-]?[ \t]+([A-Z][A-Za-z]+)`)},
	},
	FieldTaluk: {
		{"taluk_labelled", regexp.MustCompile(`(?i:Taluka?)[ \t]*[:\-]?[ \t]+([A-Z][A-Za-z]+)`)},
	},
	FieldDistrict: {
		{"district_labelled", regexp.MustCompile(`(?i:District)[ \t]*[:\-]?[ \t]+([A-Z][A-Za-z]+)`)},
	},
	FieldExtent: {
		{"acres_guntas", regexp.MustCompile(`(?i)(\d{1,4}\s*Acres?\s+\d{1,3}\s*Guntas?)`)},
		{"extent_labelled", regexp.MustCompile(`(?i)(?:Extent|Area)\s*[:\-]?\s*(\d{1,4}(?:\.\d+)?\s*(?:Acres?|Guntas?|Hectares?))`)},
		{"extent_bare", regexp.MustCompile(`(?i)\b(\d{1,4}(?:\.\d+)?\s*(?:Acres?|Guntas?))\b`)},
	},
	FieldLoanAmount: {
		{"rupee_symbol", regexp.MustCompile(`₹\s*(\d[\d,]*(?:\.\d{1,2})?)`)},
		{"rs_labelled", regexp.MustCompile(`(?i)(?:Rs|INR)\.?\s*(\d[\d,]*(?:\.\d{1,2})?)(?:\s*/-)?`)},
		{"loan_labelled", regexp.MustCompile(`(?i)(?:Loan|Mortgage|Amount)\s*(?:of|for)?\s*[:\-]?\s*(?:₹|Rs\.?|INR)?\s*(\d[\d,]{3,}(?:\.\d{1,2})?)(?:\s*/-)?`)},
	},
	FieldBank: {
		{"bank_known", regexp.MustCompile(`(?i)\b(State\s+Bank\s+of\s+Mysore|S\.?B\.?M\.?|State\s+Bank\s+of\s+India|SBI|HDFC(?:\s+Bank)?|ICICI(?:\s+Bank)?|Axis\s+Bank|Bank\s+of\s+Baroda|BOB|Punjab\s+National\s+Bank|PNB|Canara\s+Bank|Union\s+Bank(?:\s+of\s+India)?)\b`)},
		{"bank_generic", regexp.MustCompile(`\b([A-Z][a-z]+\s+Bank(?:\s+of\s+[A-Z][a-z]+)?)\b`)},
	},
	FieldCase: {
		{"civil_suit", regexp.MustCompile(`(?i)(?:Civil\s+Suit|C\.S\.|CS)\s*No\.?\s*[:\-]?\s*(\d+[/\-]?\d*)`)},
		{"criminal_case", regexp.MustCompile(`(?i)(?:Criminal\s+Case|Cr\.C\.|CC)\s*No\.?\s*[:\-]?\s*(\d+[/\-]?\d*)`)},
		{"case_labelled", regexp.MustCompile(`(?i)Case\s*(?:No|Number)?\.?\s*[:\-]\s*(\d+[/\-]?\d*)`)},
		{"op_labelled", regexp.MustCompile(`(?i)O\.?S\.?\s*No\.?\s*[:\-]?\s*(\d+[/\-]?\d*)`)},
	},
	FieldDate: {
		{"dmy", regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{4})\b`)},
		{"ymd", regexp.MustCompile(`\b(\d{4}[/-]\d{1,2}[/-]\d{1,2})\b`)},
	},
	FieldMutation: {
		{"mr_labelled", regexp.MustCompile(`(?i)(?:Mutation|MR)\s*(?:No|Number)\.?\s*[:\-]?\s*(\d+[/\-]?\d*)`)},
	},
	FieldValidFrom: {
		{"valid_from", regexp.MustCompile(`(?i)Valid(?:ity)?\s+From\s*[:\-]?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`)},
		{"period_from", regexp.MustCompile(`(?i)Period\s*[:\-]?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{4})\s*(?:to|-)`)},
	},
	FieldValidTo: {
		{"valid_to", regexp.MustCompile(`(?i)Valid(?:ity)?\s*(?:Up)?\s*To\s*[:\-]?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`)},
		{"period_to", regexp.MustCompile(`(?i)(?:to|-)\s*(\d{1,2}[/-]\d{1,2}[/-]\d{4})\s*$`)},
	},
	FieldSignedDate: {
		{"digitally_signed", regexp.MustCompile(`(?i)Digitally\s+Signed\s*(?:on|Date)?\s*[:\-]?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`)},
	},
}

// mutationPendingRe flags a mutation entry as pending from its surrounding
// context.
var mutationPendingRe = regexp.MustCompile(`(?i)\b(pending|not\s+(?:yet\s+)?(?:effected|updated|completed))\b`)

// bankCanonical maps legacy names and abbreviations onto canonical bank
// names. SBM merged into SBI in 2017 but still appears on older records.
var bankCanonical = []struct {
	match *regexp.Regexp
	name  string
}{
	{regexp.MustCompile(`(?i)state\s+bank\s+of\s+mysore|^s\.?b\.?m\.?$`), "State Bank of Mysore (now SBI)"},
	{regexp.MustCompile(`(?i)state\s+bank\s+of\s+india|^sbi$`), "State Bank of India"},
	{regexp.MustCompile(`(?i)^hdfc(\s+bank)?$`), "HDFC Bank"},
	{regexp.MustCompile(`(?i)^icici(\s+bank)?$`), "ICICI Bank"},
	{regexp.MustCompile(`(?i)^axis\s+bank$`), "Axis Bank"},
	{regexp.MustCompile(`(?i)bank\s+of\s+baroda|^bob$`), "Bank of Baroda"},
	{regexp.MustCompile(`(?i)punjab\s+national\s+bank|^pnb$`), "Punjab National Bank"},
	{regexp.MustCompile(`(?i)^canara\s+bank$`), "Canara Bank"},
	{regexp.MustCompile(`(?i)^union\s+bank(\s+of\s+india)?$`), "Union Bank"},
}

// CanonicalBankName normalizes a raw bank mention; a mention that matches no
// known bank is returned unchanged.
func CanonicalBankName(raw string) string {
	for _, m := range bankCanonical {
		if m.match.MatchString(raw) {
			return m.name
		}
	}
	return raw
}

var (
	surveyShapeRe = regexp.MustCompile(`^\d{1,4}(?:[/\-]\d{1,3}[A-Za-z]?)?$`)
	dayMonthRe    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	fullDateRe    = regexp.MustCompile(`^(?:\d{1,2}[/-]\d{1,2}[/-]\d{4}|\d{4}[/-]\d{1,2}[/-]\d{1,2})$`)
)

// validSurveyNumber rejects candidates that are really dates (12/11) or
// noise; accepts 178, 178/1, 45/2A, 123-4B.
func validSurveyNumber(s string) bool {
	if len(s) > 20 {
		return false
	}
	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		// day/month shaped fragment: both parts in calendar range
		if atoiSafe(m[1]) <= 31 && atoiSafe(m[2]) <= 12 {
			return false
		}
	}
	return surveyShapeRe.MatchString(s)
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// validDate accepts only candidates carrying a four-digit year.
func validDate(s string) bool {
	return fullDateRe.MatchString(s)
}
