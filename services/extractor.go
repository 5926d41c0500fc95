package services

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"avatar-chat-backend/internal/logger"
	"avatar-chat-backend/models"

	"github.com/ledongthuc/pdf"
)

const (
	// minPreferredLength is the extraction length at which we stop trying
	// further methods; minUsableLength is the floor below which a method's
	// output is treated as a miss.
	minPreferredLength = 50
	minUsableLength    = 10

	// Fragment validity bounds for candidate strings pulled out of raw bytes.
	minFragmentLength = 2
	maxFragmentLength = 2000
)

// TextExtractor converts raw PDF bytes into plain text through a layered
// fallback chain. Extract never fails: when every method comes up empty it
// returns a placeholder naming the byte size so downstream chunking always
// receives a non-empty input.
type TextExtractor struct {
	wordRegex *regexp.Regexp
	xrefRegex *regexp.Regexp
}

// ExtractionResult contains the extracted text and how it was obtained.
type ExtractionResult struct {
	Text           string
	Method         string
	Pages          int
	WordCount      int
	CharacterCount int
}

// NewTextExtractor creates a new text extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{
		wordRegex: regexp.MustCompile(`[A-Za-z]{3,}`),
		xrefRegex: regexp.MustCompile(`\d{10}\s+\d{5}\s+[nf]`),
	}
}

// stopWords is the function-word set used as a crude language filter for
// fragments that carry no word of three or more letters.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "is": true, "are": true, "was": true, "were": true,
	"it": true, "as": true, "by": true, "be": true, "this": true, "that": true,
}

// Extract runs the fallback chain over the raw document bytes. It is a pure
// function: no side effects, and per-method failures fall through silently
// to the next method.
func (e *TextExtractor) Extract(content []byte) *ExtractionResult {
	methods := []struct {
		name    string
		extract func([]byte) (string, int, error)
	}{
		{models.ExtractionMethodStructured, e.extractStructured},
		{models.ExtractionMethodOperators, e.extractTextOperators},
		{models.ExtractionMethodPrintable, e.extractPrintableRuns},
	}

	var bestText, bestMethod string
	var bestPages int

	for _, method := range methods {
		text, pages, err := method.extract(content)
		if err != nil {
			logger.Debug("extraction method failed", "method", method.name, "error", err)
			continue
		}

		text = strings.TrimSpace(text)
		if len(text) >= minPreferredLength {
			return e.buildResult(text, method.name, pages)
		}

		if len(text) > len(bestText) {
			bestText = text
			bestMethod = method.name
			bestPages = pages
		}
	}

	// No method reached the preferred length; a short result is still
	// better than the placeholder.
	if len(bestText) >= minUsableLength {
		return e.buildResult(bestText, bestMethod, bestPages)
	}

	placeholder := fmt.Sprintf("Document content could not be extracted (%d bytes of binary data).", len(content))
	return e.buildResult(placeholder, models.ExtractionMethodPlaceholder, 0)
}

func (e *TextExtractor) buildResult(text, method string, pages int) *ExtractionResult {
	return &ExtractionResult{
		Text:           text,
		Method:         method,
		Pages:          pages,
		WordCount:      len(strings.Fields(text)),
		CharacterCount: len(text),
	}
}

// extractStructured uses the PDF library for a page-aware parse that
// preserves reading order.
func (e *TextExtractor) extractStructured(content []byte) (text string, pages int, err error) {
	// The parser panics on some malformed cross-reference tables; a broken
	// file must fall through to the byte-level methods instead.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages = reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Debug("failed to extract page text", "page", i, "error", err)
			continue
		}

		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString(pageText)
	}

	result := textBuilder.String()
	if len(result) == 0 {
		return "", 0, fmt.Errorf("no text extracted from %d pages", pages)
	}

	return result, pages, nil
}

// extractTextOperators scans the raw bytes for PDF text-show operators:
// parenthesized literal strings inside BT/ET blocks.
func (e *TextExtractor) extractTextOperators(content []byte) (string, int, error) {
	var fragments []string

	data := content
	for {
		start := bytes.Index(data, []byte("BT"))
		if start < 0 {
			break
		}
		data = data[start+2:]

		end := bytes.Index(data, []byte("ET"))
		if end < 0 {
			end = len(data)
		}

		for _, literal := range parseLiteralStrings(data[:end]) {
			if e.isUsableFragment(literal) {
				fragments = append(fragments, literal)
			}
		}

		if end >= len(data) {
			break
		}
		data = data[end+2:]
	}

	if len(fragments) == 0 {
		return "", 0, fmt.Errorf("no text-show operators found")
	}

	return strings.Join(fragments, " "), 0, nil
}

// parseLiteralStrings collects the contents of (...) literals in a content
// stream, honoring nested parentheses and backslash escapes.
func parseLiteralStrings(data []byte) []string {
	var literals []string
	var current strings.Builder
	depth := 0

	for i := 0; i < len(data); i++ {
		b := data[i]

		if depth == 0 {
			if b == '(' {
				depth = 1
				current.Reset()
			}
			continue
		}

		switch b {
		case '\\':
			if i+1 < len(data) {
				i++
				current.WriteByte('\\')
				current.WriteByte(data[i])
			}
		case '(':
			depth++
			current.WriteByte(b)
		case ')':
			depth--
			if depth == 0 {
				literals = append(literals, unescapeLiteral(current.String()))
			} else {
				current.WriteByte(b)
			}
		default:
			current.WriteByte(b)
		}
	}

	return literals
}

// unescapeLiteral resolves the escape sequences allowed in PDF literal
// strings.
func unescapeLiteral(s string) string {
	replacer := strings.NewReplacer(
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
	)
	return replacer.Replace(s)
}

// extractPrintableRuns is the last real extraction attempt: pull out runs of
// printable ASCII and keep the ones that look like natural language.
func (e *TextExtractor) extractPrintableRuns(content []byte) (string, int, error) {
	var fragments []string
	var run strings.Builder

	flush := func() {
		if run.Len() == 0 {
			return
		}
		candidate := strings.TrimSpace(run.String())
		run.Reset()
		if e.isUsableFragment(candidate) && e.containsStopword(candidate) {
			fragments = append(fragments, candidate)
		}
	}

	for _, b := range content {
		if b >= 32 && b <= 126 {
			run.WriteByte(b)
		} else {
			flush()
		}
	}
	flush()

	if len(fragments) == 0 {
		return "", 0, fmt.Errorf("no readable printable runs found")
	}

	return strings.Join(fragments, " "), 0, nil
}

// isUsableFragment is the validity predicate applied to every candidate
// string pulled out of raw bytes. It rejects structural PDF noise rather
// than guaranteeing valid prose.
func (e *TextExtractor) isUsableFragment(s string) bool {
	if len(s) < minFragmentLength || len(s) > maxFragmentLength {
		return false
	}

	hasLetter := false
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return false
		}
		if r == 127 || r == '�' {
			return false
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			hasLetter = true
		}
	}
	if !hasLetter {
		return false
	}

	// Raw PDF structural tokens mean we're looking at file plumbing, not
	// document text.
	structural := []string{"/Type", "endobj", "endstream", "stream", "xref", "startxref"}
	for _, token := range structural {
		if strings.Contains(s, token) {
			return false
		}
	}
	if e.xrefRegex.MatchString(s) {
		return false
	}

	// Accept only fragments containing a word of 3+ letters or a stopword.
	if e.wordRegex.MatchString(s) {
		return true
	}
	return e.containsStopword(s)
}

// containsStopword checks whether any whitespace-delimited word is a common
// English function word.
func (e *TextExtractor) containsStopword(s string) bool {
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if stopWords[word] {
			return true
		}
	}
	return false
}
