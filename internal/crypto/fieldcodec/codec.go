// Package fieldcodec encrypts single field values for at-rest storage.
//
// New writes emit a versioned envelope "v1:<hex iv>:<hex ciphertext>". The
// decoder additionally accepts two historical shapes: the untagged
// "<hex iv>:<hex ciphertext>" form and the deprecated no-IV form (legacy.go).
// Decoding degrades per field: anything unrecoverable yields the Sentinel
// value rather than an error, so one bad field never fails a whole record.
package fieldcodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"

	dErrors "verikeep/pkg/domain-errors"
)

// Sentinel replaces a field value that could not be decrypted by any path.
const Sentinel = "[ENCRYPTED]"

const (
	envelopeVersion = "v1"
	ivSize          = 16

	// kdfSalt is fixed: ciphertext written years ago must stay decryptable,
	// so the derivation parameters cannot change without a data migration.
	kdfSalt = "salt"

	scryptN      = 1 << 14
	scryptR      = 8
	scryptP      = 1
	derivedKeyLn = 32

	// maxDecodeAttempts bounds the unwrap loop for values that were
	// double-encrypted by a historical write-path bug.
	maxDecodeAttempts = 3
)

// Codec encrypts and decrypts individual string values with a process-wide
// passphrase. It is safe for concurrent use.
type Codec struct {
	passphrase string
	key        []byte
}

// New derives the working key once and returns a ready codec.
// An empty passphrase is a fatal configuration error for any write path.
func New(passphrase string) (*Codec, error) {
	if passphrase == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "encryption passphrase cannot be empty")
	}
	key, err := scrypt.Key([]byte(passphrase), []byte(kdfSalt), scryptN, scryptR, scryptP, derivedKeyLn)
	if err != nil {
		return nil, fmt.Errorf("derive field key: %w", err)
	}
	return &Codec{passphrase: passphrase, key: key}, nil
}

// LooksEncrypted reports whether a value matches the on-disk ciphertext
// heuristic: it contains a ':' separator, or is pure hex longer than 20
// characters (the untagged legacy form carries no separator).
func LooksEncrypted(value string) bool {
	if value == "" {
		return false
	}
	if strings.ContainsRune(value, ':') {
		return true
	}
	return len(value) > 20 && isHex(value)
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Encode encrypts plaintext into a versioned envelope.
//
// Empty input normalizes to the empty string: encoding "" and failing to
// re-decrypt it later was a recurring defect, so absent stays absent.
// Values that already look encrypted are returned unchanged, which makes
// Encode idempotent and guards against double-encryption on re-saves.
func (c *Codec) Encode(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if LooksEncrypted(plaintext) {
		return plaintext, nil
	}
	return c.seal(plaintext)
}

// seal encrypts unconditionally. Encode layers the looks-encrypted guard on
// top for raw fields; structured payloads must not go through that guard,
// since serialized JSON trips the heuristic and would be stored as-is.
func (c *Codec) seal(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	ct, err := encryptCBC(c.key, iv, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("encrypt field: %w", err)
	}

	return envelopeVersion + ":" + hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct), nil
}

// Decode recovers the plaintext for a stored value.
//
// Values that do not look encrypted are returned unchanged, so Decode is a
// no-op on plaintext. Encrypted values are unwrapped up to maxDecodeAttempts
// times (historical rows exist that were encrypted twice). When the envelope
// paths fail, the deprecated no-IV format is attempted last. Anything still
// unreadable yields Sentinel, never an error.
func (c *Codec) Decode(value string) string {
	if !LooksEncrypted(value) {
		return value
	}

	current := value
	for attempt := 0; attempt < maxDecodeAttempts; attempt++ {
		plain, err := c.decryptEnvelope(current)
		if err != nil {
			break
		}
		if !LooksEncrypted(plain) {
			return plain
		}
		current = plain
	}

	if plain, err := decodeLegacy(c.passphrase, current); err == nil && !LooksEncrypted(plain) {
		return plain
	}
	return Sentinel
}

// decryptEnvelope handles the versioned and untagged iv:ciphertext shapes.
func (c *Codec) decryptEnvelope(value string) (string, error) {
	parts := strings.Split(value, ":")
	if len(parts) == 3 && parts[0] == envelopeVersion {
		parts = parts[1:]
	}
	if len(parts) != 2 {
		return "", fmt.Errorf("not an iv:ciphertext envelope")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", fmt.Errorf("bad iv")
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("bad ciphertext hex")
	}

	plain, err := decryptCBC(c.key, iv, ct)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncodeJSON serializes a structured value and encrypts it as one field.
// Encryption is unconditional: the plaintext here is always JSON we just
// produced, never an already-sealed value from a re-save.
func (c *Codec) EncodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal structured field: %w", err)
	}
	return c.seal(string(raw))
}

// DecodeJSON decrypts a structured field and parses it into out.
// An unreadable or unparseable payload returns an error; callers substitute
// their own zero value the same way plain fields fall back to Sentinel.
func (c *Codec) DecodeJSON(value string, out any) error {
	plain, err := c.open(value)
	if err != nil {
		return dErrors.New(dErrors.CodeInternal, "structured field is unreadable")
	}
	if err := json.Unmarshal([]byte(plain), out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "parse structured field")
	}
	return nil
}

// open unwraps envelopes until the payload stops being one, without the
// looks-encrypted heuristic Decode applies. Decrypted JSON contains colons
// and would otherwise be mistaken for ciphertext and degraded to Sentinel.
func (c *Codec) open(value string) (string, error) {
	current := value
	unwrapped := false
	for attempt := 0; attempt < maxDecodeAttempts; attempt++ {
		plain, err := c.decryptEnvelope(current)
		if err != nil {
			break
		}
		current = plain
		unwrapped = true
	}
	if unwrapped {
		return current, nil
	}
	if plain, err := decodeLegacy(c.passphrase, value); err == nil {
		return plain, nil
	}
	return "", fmt.Errorf("not a readable envelope")
}

func encryptCBC(key, iv, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func decryptCBC(key, iv, ct []byte) ([]byte, error) {
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not block-aligned")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
