package services

import (
	"strings"
	"testing"

	"avatar-chat-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNeverReturnsEmpty(t *testing.T) {
	extractor := NewTextExtractor()

	inputs := [][]byte{
		nil,
		{},
		{0x00, 0x01, 0x02, 0xFF},
		[]byte("not a pdf at all"),
		[]byte("%PDF-1.4 garbage that is not parseable"),
	}

	for _, input := range inputs {
		result := extractor.Extract(input)
		require.NotNil(t, result)
		assert.NotEmpty(t, result.Text)
		assert.NotEmpty(t, result.Method)
	}
}

func TestExtractPlaceholderNamesByteSize(t *testing.T) {
	extractor := NewTextExtractor()

	result := extractor.Extract([]byte{0x00, 0x01, 0x02})
	assert.Equal(t, models.ExtractionMethodPlaceholder, result.Method)
	assert.Contains(t, result.Text, "3 bytes")
}

func TestExtractTextOperators(t *testing.T) {
	extractor := NewTextExtractor()

	// Minimal content stream with text-show operators. Not a valid PDF, so
	// the structured parse fails and the operator scan takes over.
	content := []byte("%PDF-1.4\nBT (The quick brown fox jumps over the lazy dog) Tj ET\nBT (It was the best of times in the document) Tj ET\n")

	result := extractor.Extract(content)
	assert.Equal(t, models.ExtractionMethodOperators, result.Method)
	assert.Contains(t, result.Text, "quick brown fox")
	assert.Contains(t, result.Text, "best of times")
}

func TestExtractOperatorsUnescapesLiterals(t *testing.T) {
	extractor := NewTextExtractor()

	content := []byte(`BT (The value \(in parentheses\) matters here for the test) Tj ET`)

	result := extractor.Extract(content)
	assert.Contains(t, result.Text, "(in parentheses)")
}

func TestExtractPrintableRunsFallback(t *testing.T) {
	extractor := NewTextExtractor()

	// No BT/ET markers, but a long readable sentence embedded in binary
	// noise. The printable scan should recover it.
	var buf []byte
	buf = append(buf, 0x00, 0x01, 0xFE)
	buf = append(buf, []byte("This is the main body of the report and it describes the quarterly results in detail.")...)
	buf = append(buf, 0xFF, 0x03)

	result := extractor.Extract(buf)
	assert.Equal(t, models.ExtractionMethodPrintable, result.Method)
	assert.Contains(t, result.Text, "quarterly results")
}

func TestIsUsableFragment(t *testing.T) {
	extractor := NewTextExtractor()

	cases := []struct {
		fragment string
		usable   bool
	}{
		{"The quick brown fox", true},
		{"is a", true},
		{"x", false},
		{"12345", false},
		{"!!! ???", false},
		{"/Type /Page", false},
		{"4 0 obj endobj", false},
		{"0000000017 00000 n", false},
		{"stream data here", false},
		{strings.Repeat("a", 3000), false},
		{"ab\x01cd", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.usable, extractor.isUsableFragment(tc.fragment), "fragment: %q", tc.fragment)
	}
}
