package sqlident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"simple", "WebhookData", true},
		{"underscore and digits", "dbo_2024_events", true},
		{"leading digit", "1table", true},
		{"single underscore", "_", true},
		{"empty", "", false},
		{"semicolon", "t;DROP TABLE x", false},
		{"single quote", "o'brien", false},
		{"comment", "t--", false},
		{"space", "my table", false},
		{"tab", "my\ttable", false},
		{"newline", "t\n", false},
		{"brackets", "[dbo]", false},
		{"closing bracket", "t]", false},
		{"double quote", `t"`, false},
		{"dot", "dbo.table", false},
		{"hyphen", "my-table", false},
		{"non ascii letter", "tablé", false},
		{"max length", strings.Repeat("a", MaxLength), true},
		{"over max length", strings.Repeat("a", MaxLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.in))
		})
	}
}

func TestValidate_WrapsSentinel(t *testing.T) {
	err := Validate("table", "x;y")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.Contains(t, err.Error(), "table")

	assert.NoError(t, Validate("schema", "dbo"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "[WebhookData]", QuoteBracket("WebhookData"))
	assert.Equal(t, `"WebhookData"`, QuoteANSI("WebhookData"))

	assert.Panics(t, func() { QuoteBracket("a]b") })
	assert.Panics(t, func() { QuoteANSI(`a"b`) })
}
