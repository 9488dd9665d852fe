package mediacrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"testing"

	"golang.org/x/crypto/hkdf"

	"github.com/stretchr/testify/require"
)

// encryptMedia builds a blob the way the provider does: CBC over
// PKCS7-padded plaintext, followed by the first 10 bytes of
// HMAC-SHA256(mac_key, iv || ciphertext).
func encryptMedia(t *testing.T, plain, mediaKey []byte, info string) []byte {
	t.Helper()

	expanded := make([]byte, 112)
	r := hkdf.New(sha256.New, mediaKey, make([]byte, 32), []byte(info))
	_, err := io.ReadFull(r, expanded)
	require.NoError(t, err)

	iv := expanded[0:16]
	cipherKey := expanded[16:48]
	macKey := expanded[48:80]

	padLen := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)

	block, err := aes.NewCipher(cipherKey)
	require.NoError(t, err)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	h := hmac.New(sha256.New, macKey)
	h.Write(iv)
	h.Write(ciphertext)
	return append(ciphertext, h.Sum(nil)[:10]...)
}

func newMediaKey(t *testing.T) ([]byte, string) {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key, base64.StdEncoding.EncodeToString(key)
}

func TestDecryptRoundTrip(t *testing.T) {
	plain := []byte("receipt image payload, long enough to span multiple AES blocks")
	key, keyB64 := newMediaKey(t)
	info := InfoForKind("image")

	enc := encryptMedia(t, plain, key, info)
	sum := sha256.Sum256(plain)

	got, err := Decrypt(enc, keyB64, info, base64.StdEncoding.EncodeToString(sum[:]))
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestDecryptMACMismatch(t *testing.T) {
	key, keyB64 := newMediaKey(t)
	info := InfoForKind("image")
	enc := encryptMedia(t, []byte("payload"), key, info)

	enc[0] ^= 0xFF

	_, err := Decrypt(enc, keyB64, info, "")
	require.ErrorIs(t, err, ErrMACMismatch)
}

func TestDecryptWrongInfoFailsMAC(t *testing.T) {
	key, keyB64 := newMediaKey(t)
	enc := encryptMedia(t, []byte("payload"), key, InfoForKind("image"))

	_, err := Decrypt(enc, keyB64, InfoForKind("video"), "")
	require.ErrorIs(t, err, ErrMACMismatch)
}

func TestDecryptSHA256Mismatch(t *testing.T) {
	key, keyB64 := newMediaKey(t)
	info := InfoForKind("image")
	enc := encryptMedia(t, []byte("payload"), key, info)

	wrong := sha256.Sum256([]byte("different payload"))
	_, err := Decrypt(enc, keyB64, info, base64.StdEncoding.EncodeToString(wrong[:]))
	require.ErrorIs(t, err, ErrSHA256Mismatch)
}

func TestDecryptRejectsBadKey(t *testing.T) {
	_, err := Decrypt(make([]byte, 64), "not base64!!", InfoForKind("image"), "")
	require.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("short key"))
	_, err = Decrypt(make([]byte, 64), short, InfoForKind("image"), "")
	require.Error(t, err)
}

func TestDecryptSingleBlockBlob(t *testing.T) {
	// A short plaintext pads to one AES block: 26 bytes with the MAC
	// trailer, the smallest blob the provider can produce.
	plain := []byte("payload")
	key, keyB64 := newMediaKey(t)
	info := InfoForKind("image")

	enc := encryptMedia(t, plain, key, info)
	require.Len(t, enc, aes.BlockSize+10)

	got, err := Decrypt(enc, keyB64, info, "")
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestDecryptRejectsShortBlob(t *testing.T) {
	_, keyB64 := newMediaKey(t)
	_, err := Decrypt(make([]byte, 10), keyB64, InfoForKind("image"), "")
	require.Error(t, err)

	_, err = Decrypt(make([]byte, aes.BlockSize+9), keyB64, InfoForKind("image"), "")
	require.Error(t, err)
}

func TestInfoForKind(t *testing.T) {
	require.Equal(t, "WhatsApp Image Keys", InfoForKind("image"))
	require.Equal(t, "WhatsApp Video Keys", InfoForKind("video"))
	require.Equal(t, "WhatsApp Document Keys", InfoForKind("document"))
	require.Equal(t, "WhatsApp Image Keys", InfoForKind("unknown"))
}
