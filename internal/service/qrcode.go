package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"

	"github.com/skip2/go-qrcode"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// QRGenerator renders a table URL into a base64 image
type QRGenerator interface {
	Generate(content string) (string, error)
}

// PNGQRGenerator encodes PNG QR codes at a fixed size
type PNGQRGenerator struct {
	Size int
}

func (g PNGQRGenerator) Generate(content string) (string, error) {
	size := g.Size
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// newTableToken returns a 32 character alphanumeric token
func newTableToken() (string, error) {
	n := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, 32)
	for i := range b {
		r, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[r.Int64()]
	}
	return string(b), nil
}

// tableURL is the kiosk address a table's QR code points at
func tableURL(baseURL, token string) string {
	return baseURL + "/kiosk?table=" + url.QueryEscape(token)
}
