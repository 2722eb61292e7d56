package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Webhook deliveries carry an x-signature header of the form
// "ts=<unix>,v1=<hmac>". The hmac is SHA-256 over the manifest
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;" keyed with the
// account's webhook secret. The data id is lowercased per the gateway's
// documentation.
var ErrInvalidSignature = errors.New("invalid webhook signature")

func VerifySignature(xSignature, xRequestID, dataID, secret string) error {
	if xSignature == "" {
		return fmt.Errorf("%w: missing x-signature header", ErrInvalidSignature)
	}

	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return fmt.Errorf("%w: malformed x-signature header", ErrInvalidSignature)
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(dataID), xRequestID, ts)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}

	return nil
}
