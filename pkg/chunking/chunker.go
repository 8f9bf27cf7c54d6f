// Package chunking segments legal case text into bounded-size pieces suitable
// for embedding. Splitting is deterministic: the same text and thresholds
// always produce the same chunk sequence.
package chunking

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Config holds chunking parameters.
type Config struct {
	// SummaryThreshold is the length in characters below which a judgment
	// summary is kept as a single chunk.
	SummaryThreshold int `json:"summary_threshold"`

	// Paragraph chunking parameters for long-form fields.
	ParagraphMinLen  int `json:"paragraph_min_len"`
	ParagraphMaxLen  int `json:"paragraph_max_len"`
	ParagraphOverlap int `json:"paragraph_overlap"` // accepted, currently a no-op
}

// DefaultConfig returns the production chunking parameters.
func DefaultConfig() Config {
	return Config{
		SummaryThreshold: 300,
		ParagraphMinLen:  400,
		ParagraphMaxLen:  900,
		ParagraphOverlap: 80,
	}
}

// Chunker produces ChunkEntry values from case records.
type Chunker struct {
	config Config
	logger *slog.Logger
}

// NewChunker creates a chunker. A zero-valued config is replaced with defaults.
func NewChunker(config Config, logger *slog.Logger) *Chunker {
	if config.SummaryThreshold == 0 {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{
		config: config,
		logger: logger.With("component", "chunker"),
	}
}

var (
	// Sentence terminators: ASCII enders plus the full-width stop used in
	// Korean legal prose. The terminator is consumed by the split, matching
	// how the chunks are later re-joined for display.
	sentencePattern  = regexp.MustCompile(`[.!?。]\s*`)
	paragraphPattern = regexp.MustCompile(`\n{2,}`)
)

// splitSentences divides text at sentence terminators, trimming whitespace and
// discarding empty fragments.
func splitSentences(text string) []string {
	parts := sentencePattern.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// splitParagraphs divides text at blank lines. Text with no blank line is a
// single paragraph; whitespace-only text yields nothing.
func splitParagraphs(text string) []string {
	parts := paragraphPattern.Split(text, -1)
	paras := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			paras = append(paras, s)
		}
	}
	return paras
}

// ChunkText splits text into sentence-aligned chunks of at most threshold
// characters. Lengths are counted in runes, not bytes; Korean legal prose is
// multi-byte throughout. Text at or under the threshold is returned whole; a
// single sentence longer than the threshold becomes its own oversized chunk
// rather than being cut mid-sentence.
func ChunkText(text string, threshold int) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= threshold {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	sentences := splitSentences(text)
	var chunks []string
	var current string

	for _, sentence := range sentences {
		candidate := sentence
		if current != "" {
			candidate = current + " " + sentence
		}

		if utf8.RuneCountInString(candidate) <= threshold {
			current = candidate
		} else {
			if current != "" {
				chunks = append(chunks, current)
			}
			current = sentence
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}

// ChunkParagraphs applies the same greedy accumulation over blank-line
// delimited paragraphs, joined by newlines, bounded by maxLen. A trailing
// chunk shorter than minLen is folded into its predecessor, which may push
// that chunk past maxLen. The overlap parameter is accepted for interface
// stability but does not duplicate trailing content between chunks.
func ChunkParagraphs(text string, minLen, maxLen, overlap int) []string {
	if text == "" {
		return nil
	}

	paras := splitParagraphs(text)
	var chunks []string
	var buf string

	for _, p := range paras {
		switch {
		case buf == "":
			buf = p
		case utf8.RuneCountInString(buf)+utf8.RuneCountInString(p) <= maxLen:
			buf += "\n" + p
		default:
			chunks = append(chunks, buf)
			buf = p
		}
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}

	if len(chunks) > 1 && utf8.RuneCountInString(chunks[len(chunks)-1]) < minLen {
		chunks[len(chunks)-2] += "\n" + chunks[len(chunks)-1]
		chunks = chunks[:len(chunks)-1]
	}

	return chunks
}

// BuildEntries chunks the judgment summary of a record and wraps each chunk
// with its metadata. Records without a summary produce no entries.
func (c *Chunker) BuildEntries(rec CaseRecord) []ChunkEntry {
	if strings.TrimSpace(rec.JudgmentSummary) == "" {
		c.logger.Warn("case record has no judgment summary",
			"serial_number", rec.SerialNumber,
			"case_number", rec.CaseNumber,
		)
		return nil
	}

	chunks := ChunkText(rec.JudgmentSummary, c.config.SummaryThreshold)

	entries := make([]ChunkEntry, 0, len(chunks))
	for i, text := range chunks {
		meta := baseMetadata(rec)
		meta.Text = text
		meta.ChunkType = ChunkTypeJudgmentSummary
		meta.ChunkIndex = i

		entries = append(entries, ChunkEntry{
			SourceID:   rec.SerialNumber,
			ChunkType:  ChunkTypeJudgmentSummary,
			ChunkIndex: i,
			Text:       text,
			Metadata:   meta,
		})
	}

	c.logger.Debug("judgment summary chunked",
		"serial_number", rec.SerialNumber,
		"summary_length", len(rec.JudgmentSummary),
		"chunks", len(entries),
	)

	return entries
}
