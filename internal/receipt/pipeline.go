// Package receipt turns a scanned receipt image into a persisted,
// schema-valid record: single-shot model extraction followed by
// normalization and an atomic save.
package receipt

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/jthornhill/finagent/internal/finance"
)

// extractionPrompt is the fixed instruction for the vision request. The
// model must answer with nothing but the JSON document.
const extractionPrompt = `Analyze this receipt image and extract its details.

Respond with a single JSON object containing exactly these fields:
- "date": purchase date as a YYYY-MM-DD string
- "currency": 3-letter currency code
- "vendor_name": name of the vendor
- "receipt_items": array of {"item_name": string, "item_cost": number}
- "tax": tax amount as a number
- "total": total amount as a number

Return only the JSON object, with no commentary and no code fences.`

// Extractor is the single-shot model call the pipeline depends on.
// *runner.Runner satisfies it.
type Extractor interface {
	ExtractOnce(ctx context.Context, prompt, mediaType, imageB64 string) (string, error)
}

// Result is the outcome reported to the boundary layer.
type Result struct {
	Status  string                `json:"status"`
	Data    *finance.SavedReceipt `json:"data,omitempty"`
	Message string                `json:"message,omitempty"`
}

func errorResult(msg string) Result {
	return Result{Status: "error", Message: msg}
}

// Pipeline wires extraction, normalization, image storage, and the
// persistence sink together.
type Pipeline struct {
	extractor Extractor
	sink      finance.PersistenceSink
	images    *ImageStore
	now       func() time.Time
}

func NewPipeline(extractor Extractor, sink finance.PersistenceSink, images *ImageStore) *Pipeline {
	return &Pipeline{extractor: extractor, sink: sink, images: images, now: time.Now}
}

// Extract runs the full pipeline for one uploaded image. All failures
// come back as error results; nothing is persisted unless normalization
// succeeded and the save committed.
func (p *Pipeline) Extract(ctx context.Context, image []byte, filename string) Result {
	if !AllowedFile(filename) {
		return errorResult("Invalid file type. Allowed types: jpg, jpeg, png")
	}
	mediaType, _ := mediaTypeFor(filename)

	imageURL, err := p.images.Save(image, filename)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to store receipt image", "filename", filename, "error", err)
		return errorResult("Failed to store uploaded image")
	}

	encoded := base64.StdEncoding.EncodeToString(image)
	raw, err := p.extractor.ExtractOnce(ctx, extractionPrompt, mediaType, encoded)
	if err != nil {
		slog.ErrorContext(ctx, "Receipt extraction call failed", "error", err)
		return errorResult("Extraction failed: " + err.Error())
	}

	rec, defaulted, err := Normalize([]byte(raw), p.now().Format(time.DateOnly))
	if err != nil {
		return errorResult("Invalid JSON response from extraction")
	}
	if len(defaulted) > 0 {
		slog.WarnContext(ctx, "Receipt fields defaulted during normalization",
			"fields", defaulted, "vendor", rec.VendorName)
	}

	saved, err := p.sink.SaveReceipt(ctx, rec, imageURL)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to save receipt", "vendor", rec.VendorName, "error", err)
		return errorResult("Failed to save receipt: " + err.Error())
	}

	slog.InfoContext(ctx, "Receipt extracted and saved",
		"id", saved.ID, "vendor", saved.VendorName, "total", saved.Total, "items", len(saved.Items))
	return Result{Status: "success", Data: &saved}
}
