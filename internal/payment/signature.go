package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// sign returns hex(HMAC-SHA256(key, data)), the mac format both providers use.
func sign(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// verify compares a received mac in constant time.
func verify(key, data, received string) bool {
	expected := sign(key, data)
	return hmac.Equal([]byte(expected), []byte(received))
}
