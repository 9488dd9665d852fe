package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"peraduan/config"

	"github.com/stretchr/testify/require"
)

type stubRecognizer struct {
	lines []string
	err   error
}

func (s stubRecognizer) RecognizeLines(ctx context.Context, image []byte) ([]string, error) {
	return s.lines, s.err
}

// writeJPEG drops a file with a JPEG header so acquire treats it as a
// plain image.
func writeJPEG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receipt.jpg")
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 64)...)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestPipeline(rec TextRecognizer) *Pipeline {
	return &Pipeline{Vision: rec, Parser: NewParser(config.OCRConfig{})}
}

func TestProcessValidReceipt(t *testing.T) {
	p := newTestPipeline(stubRecognizer{lines: aeonReceipt})
	res := p.Process(context.Background(), Input{URL: writeJPEG(t), Kind: "image"})

	require.True(t, res.Success)
	require.True(t, res.Valid)
	require.Empty(t, res.Reason)
	require.Equal(t, "AEON BIG HYPERMARKET KLANG SELANGOR", res.StoreName)
	require.Equal(t, "Klang, Selangor", res.StoreLocation)
	require.Equal(t, "RM149.00", res.Amount)
	require.Contains(t, res.Summary(), "Store: AEON BIG HYPERMARKET KLANG SELANGOR")
	require.Contains(t, res.Summary(), "- 2x KHIND TF1601DC")
}

func TestProcessBelowContestMinimum(t *testing.T) {
	min := 200.0
	p := newTestPipeline(stubRecognizer{lines: aeonReceipt})
	res := p.Process(context.Background(), Input{URL: writeJPEG(t), Kind: "image", MinPurchaseAmount: &min})

	require.True(t, res.Success)
	require.False(t, res.Valid)
	require.Equal(t, "Amount below contest minimum of RM200.00", res.Reason)
}

func TestProcessNoText(t *testing.T) {
	p := newTestPipeline(stubRecognizer{lines: nil})
	res := p.Process(context.Background(), Input{URL: writeJPEG(t), Kind: "image"})

	require.True(t, res.Success)
	require.False(t, res.Valid)
	require.Equal(t, "No text extracted", res.Reason)
}

func TestProcessOCRUnavailable(t *testing.T) {
	p := newTestPipeline(stubRecognizer{err: errors.New("quota exceeded")})
	res := p.Process(context.Background(), Input{URL: writeJPEG(t), Kind: "image"})

	require.False(t, res.Success)
	require.Equal(t, "OCR unavailable", res.Reason)
}

func TestProcessMissingImage(t *testing.T) {
	p := newTestPipeline(stubRecognizer{lines: aeonReceipt})
	res := p.Process(context.Background(), Input{URL: filepath.Join(t.TempDir(), "nope.jpg"), Kind: "image"})

	require.False(t, res.Success)
	require.Equal(t, "Image missing", res.Reason)
}

func TestProcessEncryptedWithoutKey(t *testing.T) {
	// Encrypted blobs carry no image magic; with a sha hint but no media
	// key the pipeline must fail with the key-material reason.
	path := filepath.Join(t.TempDir(), "blob.enc")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o644))

	p := newTestPipeline(stubRecognizer{lines: aeonReceipt})
	res := p.Process(context.Background(), Input{URL: path, Kind: "image", FileSha256: "c2hhLWhpbnQ="})

	require.False(t, res.Success)
	require.Equal(t, "encrypted WhatsApp media without key material", res.Reason)
}

func TestProcessGarbagePayload(t *testing.T) {
	// No image magic, no encrypted hint: plain junk.
	path := filepath.Join(t.TempDir(), "junk.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o644))

	p := newTestPipeline(stubRecognizer{lines: aeonReceipt})
	res := p.Process(context.Background(), Input{URL: path, Kind: "image"})

	require.False(t, res.Success)
	require.Equal(t, "Image missing", res.Reason)
}
