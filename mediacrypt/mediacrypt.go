// Package mediacrypt decrypts WhatsApp end-to-end-encrypted media blobs.
//
// The scheme: 112 bytes are derived from the 32-byte media key via
// HKDF-SHA256 (zero salt, per-kind info string) and split into
// iv(16) | cipher_key(32) | mac_key(32) | ref_key(32). The blob carries
// the ciphertext followed by the first 10 bytes of
// HMAC-SHA256(mac_key, iv || ciphertext).
package mediacrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrMACMismatch    = errors.New("MAC validation failed")
	ErrBadPadding     = errors.New("padding invalid")
	ErrSHA256Mismatch = errors.New("SHA256 mismatch")
)

// InfoForKind maps an attachment kind to the HKDF info string.
func InfoForKind(kind string) string {
	switch kind {
	case "video":
		return "WhatsApp Video Keys"
	case "document":
		return "WhatsApp Document Keys"
	default:
		return "WhatsApp Image Keys"
	}
}

// Decrypt decrypts an encrypted media blob. mediaKeyB64 is the 32-byte
// base64 media key from the message metadata; expectedSha256B64, when
// non-empty, is checked against the plaintext digest. Callers never
// retry: the key material is stable, so a failure is final.
func Decrypt(enc []byte, mediaKeyB64, mediaInfo, expectedSha256B64 string) ([]byte, error) {
	mediaKey, err := base64.StdEncoding.DecodeString(mediaKeyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid media key: %w", err)
	}
	if len(mediaKey) != 32 {
		return nil, fmt.Errorf("invalid media key length: %d", len(mediaKey))
	}
	// Smallest valid blob: one AES block plus the 10-byte MAC trailer.
	if len(enc) < 10+aes.BlockSize {
		return nil, fmt.Errorf("encrypted blob too short: %d bytes", len(enc))
	}

	expanded := make([]byte, 112)
	r := hkdf.New(sha256.New, mediaKey, make([]byte, 32), []byte(mediaInfo))
	if _, err := io.ReadFull(r, expanded); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	iv := expanded[0:16]
	cipherKey := expanded[16:48]
	macKey := expanded[48:80]

	ciphertext := enc[:len(enc)-10]
	mac10 := enc[len(enc)-10:]

	h := hmac.New(sha256.New, macKey)
	h.Write(iv)
	h.Write(ciphertext)
	if !hmac.Equal(h.Sum(nil)[:10], mac10) {
		return nil, ErrMACMismatch
	}

	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrBadPadding
	}
	block, err := aes.NewCipher(cipherKey)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, err = stripPKCS7(plain)
	if err != nil {
		return nil, err
	}

	if expectedSha256B64 != "" {
		want, err := base64.StdEncoding.DecodeString(expectedSha256B64)
		if err == nil {
			got := sha256.Sum256(plain)
			if !bytes.Equal(got[:], want) {
				return nil, ErrSHA256Mismatch
			}
		}
	}

	return plain, nil
}

func stripPKCS7(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrBadPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}
