package fieldcodec

import (
	"crypto/aes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// decodeLegacy handles the deprecated no-IV format: bare hex ciphertext whose
// key and IV are both derived straight from the passphrase with an unsalted
// MD5 expansion (OpenSSL EVP_BytesToKey). This is cryptographically weaker
// than the envelope format and exists only so rows written before the
// envelope migration remain readable. It is the single call site for the
// legacy path; delete this file once live data is confirmed migrated.
func decodeLegacy(passphrase, value string) (string, error) {
	ct, err := hex.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("legacy value is not hex")
	}

	key, iv := evpBytesToKey([]byte(passphrase), derivedKeyLn, aes.BlockSize)
	plain, err := decryptCBC(key, iv, ct)
	if err != nil {
		return "", fmt.Errorf("legacy decrypt: %w", err)
	}
	return string(plain), nil
}

// evpBytesToKey reproduces OpenSSL's MD5-based key/IV derivation with no salt.
func evpBytesToKey(passphrase []byte, keyLen, ivLen int) (key, iv []byte) {
	var derived, prev []byte
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}
