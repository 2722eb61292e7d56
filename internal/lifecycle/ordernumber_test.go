package lifecycle

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderNumberFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^SE-\d+-[0-9A-Z]{5}$`)

	for i := 0; i < 100; i++ {
		number := NewOrderNumber()
		assert.Regexp(t, pattern, number)
	}
}

func TestNewOrderNumberUniqueness(t *testing.T) {
	const n = 1000

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		number := NewOrderNumber()
		assert.False(t, seen[number], "duplicate order number %s", number)
		seen[number] = true
	}
}
