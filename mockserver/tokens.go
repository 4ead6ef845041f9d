package mockserver

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cserve-project/cserve-test-harness/servicedef"
)

const base62Digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// verifyToken checks that token is an HS256 JWT signed with key.
func verifyToken(token, key string) (jwt.MapClaims, error) {
	if key == "" {
		return nil, errors.New("no JWT key configured")
	}
	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}
	return claims, nil
}

func newMiscToken(key string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"aud": servicedef.MiscTokenAudience,
		"iss": servicedef.MiscTokenIssuer,
		"jti": servicedef.MiscTokenID,
		"key": servicedef.MiscTokenKey,
		"prn": servicedef.MiscTokenSubject,
	}).SignedString([]byte(key))
}

// uuidBase62 encodes the 128 bits of a UUID in base 62, the compact form the server's Lua API
// offers alongside the usual hex form.
func uuidBase62(id uuid.UUID) string {
	n := new(big.Int).SetBytes(id[:])
	if n.Sign() == 0 {
		return "0"
	}
	var b strings.Builder
	base := big.NewInt(int64(len(base62Digits)))
	mod := new(big.Int)
	var digits []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		digits = append(digits, base62Digits[mod.Int64()])
	}
	for i := len(digits) - 1; i >= 0; i-- {
		b.WriteByte(digits[i])
	}
	return b.String()
}
