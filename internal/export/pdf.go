package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/go-resty/resty/v2"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultImageTimeout bounds the recipe image download.
	DefaultImageTimeout = 10 * time.Second
	// DefaultMaxImageSize is the largest image that gets embedded (10MB).
	DefaultMaxImageSize = 10 * 1024 * 1024

	fontFamily = "Arial"
	imageWidth = 100.0
	lineHeight = 8.0
)

var imageTypes = map[string]string{
	"jpeg": "JPG",
	"png":  "PNG",
	"gif":  "GIF",
}

// Exporter renders recipes to PDF. The recipe image is embedded when it can
// be downloaded and decoded; otherwise the document is produced without it.
type Exporter struct {
	httpClient *resty.Client
	maxSize    int
	compress   bool
}

func NewExporter(imageTimeout time.Duration) *Exporter {
	if imageTimeout <= 0 {
		imageTimeout = DefaultImageTimeout
	}
	return &Exporter{
		httpClient: resty.New().
			SetDebug(false).
			SetTimeout(imageTimeout),
		maxSize:  DefaultMaxImageSize,
		compress: true,
	}
}

// Render returns the PDF bytes for d. Only a failure to produce the document
// itself is an error.
func (e *Exporter) Render(ctx context.Context, d recipe.Detail) ([]byte, error) {
	doc := BuildDocument(d)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(e.compress)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("telegram-recipe-bot", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 16)
	pdf.MultiCell(0, 10, tr(doc.Title), "", "C", false)
	pdf.Ln(4)

	if doc.ImageURL != "" {
		e.embedImage(ctx, pdf, d.ID, doc.ImageURL)
	}

	pdf.SetFont(fontFamily, "B", 12)
	pdf.CellFormat(0, lineHeight, "Ingredients:", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 12)
	for _, line := range doc.Ingredients {
		pdf.MultiCell(0, lineHeight, tr("- "+line), "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont(fontFamily, "B", 12)
	pdf.CellFormat(0, lineHeight, "Instructions:", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 12)
	pdf.MultiCell(0, lineHeight, tr(doc.Instructions), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// embedImage adds the image below the title. Every failure is logged and
// leaves the document without an image.
func (e *Exporter) embedImage(ctx context.Context, pdf *fpdf.Fpdf, recipeID int, imageURL string) {
	data, err := e.fetchImage(ctx, imageURL)
	if err != nil {
		log.Warn().Err(err).Int("recipeID", recipeID).Str("url", imageURL).Msg("skipping recipe image")
		return
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Int("recipeID", recipeID).Msg("skipping undecodable recipe image")
		return
	}
	imageType, ok := imageTypes[format]
	if !ok {
		log.Warn().Str("format", format).Int("recipeID", recipeID).Msg("skipping unsupported recipe image")
		return
	}

	name := fmt.Sprintf("recipe-%d", recipeID)
	opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if pdf.Err() || info == nil {
		log.Warn().Err(pdf.Error()).Int("recipeID", recipeID).Msg("skipping recipe image rejected by pdf")
		pdf.ClearError()
		return
	}

	x, _, _, _ := pdf.GetMargins()
	pdf.ImageOptions(name, x, pdf.GetY(), imageWidth, 0, true, opts, 0, "")
	if pdf.Err() {
		log.Warn().Err(pdf.Error()).Int("recipeID", recipeID).Msg("failed to place recipe image")
		pdf.ClearError()
		return
	}
	pdf.Ln(4)
}

func (e *Exporter) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	res, err := e.httpClient.R().
		SetContext(ctx).
		Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("download failed: status %d", res.StatusCode())
	}
	contentType := res.Header().Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("invalid content type: expected image/*, got %s", contentType)
	}
	data := res.Body()
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	if len(data) > e.maxSize {
		return nil, fmt.Errorf("image too large: %d bytes exceeds limit of %d bytes", len(data), e.maxSize)
	}
	return data, nil
}
