package constants

import "strings"

// DocumentType is the declared kind of a land-record document.
type DocumentType string

// Stable values (store these exact strings in DB).
const (
	DocTypeRTC      DocumentType = "RTC"       // Record of Rights, Tenancy and Crops
	DocTypeMR       DocumentType = "MR"        // Mutation Register extract
	DocTypeEC       DocumentType = "EC"        // Encumbrance Certificate
	DocTypeSaleDeed DocumentType = "SALE_DEED" // registered sale deed
	DocTypeUnknown  DocumentType = "UNKNOWN"
)

var allDocumentTypes = []DocumentType{
	DocTypeRTC,
	DocTypeMR,
	DocTypeEC,
	DocTypeSaleDeed,
	DocTypeUnknown,
}

// ParseDocumentType maps free-form input onto a known document type.
// Unrecognized input returns (DocTypeUnknown, false).
func ParseDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	for _, dt := range allDocumentTypes {
		if normalized == string(dt) {
			return dt, true
		}
	}
	// common long-form synonyms seen on uploads
	switch normalized {
	case "PAHANI", "RTC_FORM", "FORM_16":
		return DocTypeRTC, true
	case "MUTATION", "MUTATION_REGISTER":
		return DocTypeMR, true
	case "ENCUMBRANCE", "ENCUMBRANCE_CERTIFICATE":
		return DocTypeEC, true
	case "SALEDEED", "DEED":
		return DocTypeSaleDeed, true
	}
	return DocTypeUnknown, false
}

func DocumentTypesAsStrings() []string {
	out := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		out[i] = string(dt)
	}
	return out
}
