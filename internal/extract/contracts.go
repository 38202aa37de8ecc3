package extract

import (
	"context"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/entity"
)

// TextExtractor is Stage 1: document bytes -> page text plus metadata.
// Implementations must treat empty output as success, not an error.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, format constants.Format) (entity.ExtractionResult, error)
}
