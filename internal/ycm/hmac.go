package ycm

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// hmacBlockSize is the SHA-256 block size used by the HMAC construction.
const hmacBlockSize = 64

// SignHMACSHA256 computes HMAC-SHA256 over message with the given key.
//
// The construction follows RFC 2104 with SHA-256 and a 64-byte block:
// keys longer than the block are replaced by their SHA-256 digest, shorter
// keys are right-padded with zeros, and the result is
// SHA256(opad || SHA256(ipad || message)). The output is always 32 raw
// bytes; callers base64-encode it for header transport.
func SignHMACSHA256(key, message []byte) []byte {
	if len(key) > hmacBlockSize {
		sum := sha256.Sum256(key)
		key = sum[:]
	}

	padded := make([]byte, hmacBlockSize)
	copy(padded, key)

	ipad := make([]byte, hmacBlockSize)
	opad := make([]byte, hmacBlockSize)
	for i, b := range padded {
		ipad[i] = b ^ 0x36
		opad[i] = b ^ 0x5c
	}

	inner := sha256.New()
	inner.Write(ipad)
	inner.Write(message)
	innerSum := inner.Sum(nil)

	outer := sha256.New()
	outer.Write(opad)
	outer.Write(innerSum)
	return outer.Sum(nil)
}

// SignatureHeader returns the base64 form of the HMAC for header transport.
func SignatureHeader(key, message []byte) string {
	return base64.StdEncoding.EncodeToString(SignHMACSHA256(key, message))
}

// VerifySignature reports whether the base64 signature matches the HMAC of
// message under key. Comparison is constant-time.
func VerifySignature(key, message []byte, signature string) bool {
	want, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	got := SignHMACSHA256(key, message)
	return subtle.ConstantTimeCompare(got, want) == 1
}
