package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Valid 32-byte key in hex (64 chars)
const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func testKeys(t *testing.T) *Keys {
	t.Helper()
	keys, err := DeriveKeys(testMasterKey)
	require.NoError(t, err)
	return keys
}

func TestDeriveKeys(t *testing.T) {
	keys := testKeys(t)
	assert.Len(t, keys.Encryption, 32)
	assert.Len(t, keys.Fingerprint, 32)
	assert.NotEqual(t, keys.Encryption, keys.Fingerprint)

	again := testKeys(t)
	assert.Equal(t, keys.Encryption, again.Encryption, "derivation must be deterministic")
}

func TestDeriveKeys_Invalid(t *testing.T) {
	_, err := DeriveKeys("shortkey")
	assert.Error(t, err)

	_, err = DeriveKeys("abcd")
	assert.Error(t, err)
}

func TestAESEncryptionService_EncryptDecrypt(t *testing.T) {
	svc, err := NewAESEncryptionService(testKeys(t).Encryption)
	require.NoError(t, err)

	plaintext := "850101/1234"
	ciphertext, err := svc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESEncryptionService_DifferentNonces(t *testing.T) {
	svc, err := NewAESEncryptionService(testKeys(t).Encryption)
	require.NoError(t, err)

	c1, err := svc.Encrypt("test_value")
	require.NoError(t, err)
	c2, err := svc.Encrypt("test_value")
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2, "same plaintext should produce different ciphertext due to random nonce")
}

func TestAESEncryptionService_TamperedCiphertext(t *testing.T) {
	svc, err := NewAESEncryptionService(testKeys(t).Encryption)
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("secret")
	require.NoError(t, err)

	last := ciphertext[len(ciphertext)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	tampered := ciphertext[:len(ciphertext)-1] + string(flipped)
	_, err = svc.Decrypt(tampered)
	assert.Error(t, err)
}

func TestAESEncryptionService_WrongKey(t *testing.T) {
	keys := testKeys(t)
	svc1, err := NewAESEncryptionService(keys.Encryption)
	require.NoError(t, err)
	svc2, err := NewAESEncryptionService(keys.Fingerprint)
	require.NoError(t, err)

	ciphertext, err := svc1.Encrypt("identity")
	require.NoError(t, err)

	_, err = svc2.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestAESEncryptionService_InvalidInput(t *testing.T) {
	_, err := NewAESEncryptionService([]byte("short"))
	assert.Error(t, err)

	svc, err := NewAESEncryptionService(testKeys(t).Encryption)
	require.NoError(t, err)

	_, err = svc.Decrypt("not-hex-at-all!!!")
	assert.Error(t, err)

	_, err = svc.Decrypt("abcdef")
	assert.Error(t, err)
}

func TestHMACFingerprinter(t *testing.T) {
	keys := testKeys(t)
	fp := NewHMACFingerprinter(keys.Fingerprint)

	a := fp.Fingerprint("850101/1234")
	assert.Len(t, a, 64)
	assert.Equal(t, a, fp.Fingerprint("  850101/1234 "))
	assert.NotEqual(t, a, fp.Fingerprint("850101/1235"))

	other := NewHMACFingerprinter(keys.Encryption)
	assert.NotEqual(t, a, other.Fingerprint("850101/1234"))
}
