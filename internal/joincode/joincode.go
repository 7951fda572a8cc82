// Package joincode generates game codes and the QR images players scan
// to join a session.
package joincode

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/skip2/go-qrcode"
)

// Ambiguous glyphs (0/O, 1/I) are excluded so codes survive being read
// aloud across a dark room.
const (
	codeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength = 5
	qrSize     = 256
)

// Generate returns a random game code.
func Generate() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			// fallback to math/rand if crypto fails
			code[i] = codeChars[rand.Intn(len(codeChars))]
			continue
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

// Valid reports whether code looks like something Generate produced.
func Valid(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		found := false
		for j := 0; j < len(codeChars); j++ {
			if code[i] == codeChars[j] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// PNG renders the join URL for code as a QR image.
func PNG(baseURL, code string) ([]byte, error) {
	url := fmt.Sprintf("%s/join/%s", baseURL, code)
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr for %s: %w", code, err)
	}
	return png, nil
}
