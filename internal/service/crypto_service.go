package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF info labels. Changing one invalidates every value derived with it.
const (
	encryptionKeyInfo  = "avg/identity-encryption/v1"
	fingerprintKeyInfo = "avg/identity-fingerprint/v1"
)

// Keys holds the subkeys derived from the master key.
type Keys struct {
	Encryption  []byte
	Fingerprint []byte
}

// DeriveKeys expands a 32-byte hex master key into independent subkeys with HKDF-SHA256.
func DeriveKeys(masterHex string) (*Keys, error) {
	master, err := hex.DecodeString(masterHex)
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}
	if len(master) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(master))
	}

	enc, err := deriveKey(master, encryptionKeyInfo)
	if err != nil {
		return nil, err
	}
	fp, err := deriveKey(master, fingerprintKeyInfo)
	if err != nil {
		return nil, err
	}
	return &Keys{Encryption: enc, Fingerprint: fp}, nil
}

func deriveKey(master []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("deriving %s: %w", info, err)
	}
	return key, nil
}

// AESEncryptionService implements ports.EncryptionService using AES-256-GCM.
type AESEncryptionService struct {
	aead cipher.AEAD
}

// NewAESEncryptionService creates a new AES-256-GCM encryption service from a 32-byte key.
func NewAESEncryptionService(key []byte) (*AESEncryptionService, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("AES key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &AESEncryptionService{aead: aead}, nil
}

// Encrypt returns hex(nonce || ciphertext).
func (s *AESEncryptionService) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return hex.EncodeToString(s.aead.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

// Decrypt decrypts a hex-encoded AES-256-GCM ciphertext.
func (s *AESEncryptionService) Decrypt(ciphertextHex string) (string, error) {
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plaintext), nil
}

// HMACFingerprinter implements ports.Fingerprinter with a keyed HMAC-SHA256.
// Identifiers are trimmed first so formatting noise does not change the lookup key.
type HMACFingerprinter struct {
	key []byte
}

func NewHMACFingerprinter(key []byte) *HMACFingerprinter {
	return &HMACFingerprinter{key: key}
}

func (f *HMACFingerprinter) Fingerprint(identifier string) string {
	mac := hmac.New(sha256.New, f.key)
	mac.Write([]byte(normalizeIdentifier(identifier)))
	return hex.EncodeToString(mac.Sum(nil))
}
