package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signedHeader(dataID, requestID, ts, secret string) string {
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return fmt.Sprintf("ts=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	const secret = "webhook-secret"

	t.Run("valid signature passes", func(t *testing.T) {
		header := signedHeader("12345", "req-1", "1704908010", secret)
		err := VerifySignature(header, "req-1", "12345", secret)
		assert.NoError(t, err)
	})

	t.Run("data id is lowercased", func(t *testing.T) {
		header := signedHeader("abc123", "req-1", "1704908010", secret)
		err := VerifySignature(header, "req-1", "ABC123", secret)
		assert.NoError(t, err)
	})

	t.Run("missing header fails", func(t *testing.T) {
		err := VerifySignature("", "req-1", "12345", secret)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("malformed header fails", func(t *testing.T) {
		err := VerifySignature("garbage", "req-1", "12345", secret)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		header := signedHeader("12345", "req-1", "1704908010", "other-secret")
		err := VerifySignature(header, "req-1", "12345", secret)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered payment id fails", func(t *testing.T) {
		header := signedHeader("12345", "req-1", "1704908010", secret)
		err := VerifySignature(header, "req-1", "99999", secret)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered request id fails", func(t *testing.T) {
		header := signedHeader("12345", "req-1", "1704908010", secret)
		err := VerifySignature(header, "req-2", "12345", secret)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}
