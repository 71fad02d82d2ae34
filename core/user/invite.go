package user

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

// ErrInvalidInviteCode is returned when a code is unknown, already redeemed or malformed.
var ErrInvalidInviteCode = errors.New("invalid invite code")

// NormalizeCode trims and uppercases a user-supplied invite code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// generateCode draws codeLength characters uniformly from codeAlphabet.
// Codes are not guaranteed globally unique; the service retries on collision.
func generateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	var sb strings.Builder
	sb.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "drawing random character")
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
