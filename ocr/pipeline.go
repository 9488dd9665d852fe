package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"peraduan/config"
	"peraduan/mediacrypt"
	"peraduan/tools"
)

// Input describes one receipt image to process.
type Input struct {
	URL        string
	Kind       string // image/video/document
	MimeType   string
	MediaKey   string // base64, present only for encrypted media
	FileSha256 string // base64

	// Contest-level floor; nil means no contest minimum.
	MinPurchaseAmount *float64
}

// Result is the pipeline verdict. Success=false means the pipeline could
// not produce a readable receipt (download, decrypt or OCR failure);
// Valid only means anything when Success is true.
type Result struct {
	Success bool
	Valid   bool
	Reason  string

	StoreName     string
	StoreLocation string
	Amount        string
	Products      []Item
	Lines         []string
}

// TextRecognizer is what the pipeline needs from the OCR service.
type TextRecognizer interface {
	RecognizeLines(ctx context.Context, image []byte) ([]string, error)
}

// Pipeline processes one receipt image end to end: acquire, recognize,
// parse, classify.
type Pipeline struct {
	Vision TextRecognizer
	Parser *Parser
}

func NewPipeline(cfg config.OCRConfig) *Pipeline {
	return &Pipeline{
		Vision: tools.NewVisionClient(cfg),
		Parser: NewParser(cfg),
	}
}

// Process runs the full pipeline. It never returns an error: every
// failure is folded into the Result so the flow can route the entry to
// manual review instead of dropping it.
func (p *Pipeline) Process(ctx context.Context, in Input) Result {
	img, reason := p.acquire(ctx, in)
	if reason != "" {
		return Result{Success: false, Reason: reason}
	}

	lines, err := p.Vision.RecognizeLines(ctx, img)
	if err != nil {
		log.Printf("ocr: recognize error: %v", err)
		return Result{Success: false, Reason: "OCR unavailable"}
	}
	if len(lines) == 0 {
		return Result{Success: true, Valid: false, Reason: "No text extracted"}
	}

	parsed := p.Parser.Parse(lines)
	res := Result{
		Success:       true,
		StoreName:     parsed.StoreName,
		StoreLocation: parsed.StoreLocation,
		Amount:        parsed.Amount,
		Products:      parsed.Products,
		Lines:         lines,
	}
	res.Valid, res.Reason = classify(parsed, in.MinPurchaseAmount)
	return res
}

// acquire fetches the image bytes, decrypting provider-encrypted media
// when key material is present. Returns a non-empty reason on failure.
func (p *Pipeline) acquire(ctx context.Context, in Input) ([]byte, string) {
	var (
		raw []byte
		err error
	)

	if isLocalPath(in.URL) {
		raw, err = os.ReadFile(in.URL)
		if err != nil {
			return nil, "Image missing"
		}
	} else {
		raw, err = tools.FetchMedia(ctx, in.URL)
		if err != nil {
			log.Printf("ocr: download error: %v", err)
			return nil, "Image missing"
		}
	}

	if hasImageMagic(raw) {
		return raw, ""
	}

	// Not a plain image: either a provider-encrypted blob or junk.
	if !looksEncrypted(in.URL) && !hasEncryptedHint(in) {
		return nil, "Image missing"
	}
	if strings.TrimSpace(in.MediaKey) == "" {
		return nil, "encrypted WhatsApp media without key material"
	}

	plain, err := mediacrypt.Decrypt(raw, in.MediaKey, mediacrypt.InfoForKind(in.Kind), in.FileSha256)
	if err != nil {
		log.Printf("ocr: decrypt error: %v", err)
		return nil, fmt.Sprintf("encrypted WhatsApp media: %v", err)
	}
	if !hasImageMagic(plain) {
		return nil, "encrypted WhatsApp media: decrypted payload is not an image"
	}
	return plain, ""
}

func isLocalPath(url string) bool {
	return !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://")
}

// looksEncrypted matches the provider's encrypted-media URL shapes.
func looksEncrypted(url string) bool {
	return strings.Contains(url, ".enc") ||
		strings.Contains(url, "mmg.whatsapp.net") ||
		strings.Contains(url, "/mms/")
}

func hasEncryptedHint(in Input) bool {
	return strings.TrimSpace(in.MediaKey) != "" || strings.TrimSpace(in.FileSha256) != ""
}

// hasImageMagic checks the first bytes against JPEG/PNG/WEBP headers.
func hasImageMagic(b []byte) bool {
	if len(b) < 12 {
		return false
	}
	if bytes.HasPrefix(b, []byte{0xFF, 0xD8, 0xFF}) {
		return true // JPEG
	}
	if bytes.HasPrefix(b, []byte{0x89, 0x50, 0x4E, 0x47}) {
		return true // PNG
	}
	if bytes.HasPrefix(b, []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")) {
		return true
	}
	return false
}

// classify applies the validity table over the parsed fields.
func classify(parsed ParsedReceipt, minAmount *float64) (bool, string) {
	if parsed.StoreName == "" {
		return false, "Store name not detected"
	}
	if parsed.Amount == "" || parsed.Amount == "RM0.00" {
		return false, "No purchase amount detected"
	}
	if len(parsed.Products) == 0 {
		return false, "No items detected on receipt"
	}
	value := amountValue(parsed.Amount)
	if value < 1.00 {
		return false, "Amount too low"
	}
	if minAmount != nil && value < *minAmount {
		return false, fmt.Sprintf("Amount below contest minimum of RM%.2f", *minAmount)
	}
	return true, ""
}

func amountValue(formatted string) float64 {
	var v float64
	_, err := fmt.Sscanf(strings.TrimPrefix(formatted, "RM"), "%f", &v)
	if err != nil {
		return 0
	}
	return v
}

// Summary renders the parsed receipt as a short WhatsApp-friendly block.
func (r Result) Summary() string {
	var b strings.Builder
	b.WriteString("Receipt summary:\n")
	b.WriteString("Store: " + orDash(r.StoreName) + "\n")
	b.WriteString("Location: " + orDash(r.StoreLocation) + "\n")
	b.WriteString("Amount: " + orDash(r.Amount))
	if len(r.Products) > 0 {
		b.WriteString("\nItems:")
		for _, it := range r.Products {
			b.WriteString(fmt.Sprintf("\n- %dx %s", it.Qty, it.Name))
		}
	}
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
