package lifecycle

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	orderNumberPrefix    = "SE"
	orderNumberSuffixLen = 5
	orderNumberAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewOrderNumber builds the human-facing order identifier:
// SE-<unix millis>-<5 random alphanumerics>. URL-safe by construction.
func NewOrderNumber() string {
	suffix := make([]byte, orderNumberSuffixLen)
	for i := range suffix {
		suffix[i] = orderNumberAlphabet[rand.Intn(len(orderNumberAlphabet))]
	}

	return fmt.Sprintf("%s-%d-%s", orderNumberPrefix, time.Now().UnixMilli(), suffix)
}
