// Package passes runs the LLM analysis passes over review text. Each pass
// batches its input, calls the model once per batch and merges the batch
// outputs deterministically. Unparseable model output degrades to the pass
// default; provider failures are returned to the caller.
package passes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/reviewlens/pkg/models"
	"github.com/tidwall/gjson"
)

const (
	DefaultBatchSize = 50

	temperature = 0.1
	maxTokens   = 4000
)

const (
	PassSentiment    = "sentiment"
	PassIssues       = "issues"
	PassFeatures     = "features"
	PassMonetization = "monetization"
	PassActions      = "actions"
)

// Analyzer runs every analysis pass against one AI provider. It holds no
// per-job state and is safe for concurrent use.
type Analyzer struct {
	provider  models.AIProvider
	batchSize int
}

// NewAnalyzer creates an Analyzer. A non-positive batchSize uses DefaultBatchSize.
func NewAnalyzer(provider models.AIProvider, batchSize int) *Analyzer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Analyzer{provider: provider, batchSize: batchSize}
}

// call sends one prompt and returns the parsed JSON object. A reply that is
// not a JSON object yields a zero gjson.Result and no error.
func (a *Analyzer) call(ctx context.Context, pass, system, prompt string) (gjson.Result, int, error) {
	c, err := a.provider.Complete(ctx, models.CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return gjson.Result{}, 0, fmt.Errorf("%s pass: %w", pass, err)
	}

	doc, ok := parseObject(c.Content)
	if !ok {
		slog.Warn("unparseable pass output, using default", "pass", pass, "content", truncateString(c.Content, 200))
		return gjson.Result{}, c.TokensUsed, nil
	}
	return doc, c.TokensUsed, nil
}

// forEachBatch splits texts into batches and calls the model once per batch
// in order. It returns the tokens spent, including those of a failing batch's
// predecessors.
func (a *Analyzer) forEachBatch(ctx context.Context, pass, system, task string, texts []string, handle func(doc gjson.Result)) (int, error) {
	tokens := 0
	for _, batch := range batches(texts, a.batchSize) {
		prompt := fmt.Sprintf("%s these %d app reviews:\n\n%s", task, len(batch), strings.Join(batch, "\n---\n"))
		doc, used, err := a.call(ctx, pass, system, prompt)
		tokens += used
		if err != nil {
			return tokens, err
		}
		handle(doc)
	}
	return tokens, nil
}

func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}

// parseObject extracts a JSON object from model output, tolerating a
// surrounding markdown code fence.
func parseObject(content string) (gjson.Result, bool) {
	raw := stripCodeFence(content)
	if !gjson.Valid(raw) {
		return gjson.Result{}, false
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return gjson.Result{}, false
	}
	return doc, true
}

func stripCodeFence(content string) string {
	if _, after, ok := strings.Cut(content, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(content, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(content)
}

// NormalizeName is the de-duplication key for names reported by the model:
// case-folded and trimmed. Inner spacing is significant.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func parseLevel(r gjson.Result, fallback models.Level) models.Level {
	if l, ok := models.ParseLevel(r.String()); ok {
		return l
	}
	return fallback
}

// count reads a positive integer, defaulting to 1.
func count(r gjson.Result) int {
	if n := int(r.Int()); r.Exists() && n > 0 {
		return n
	}
	return 1
}

func stringOr(r gjson.Result, fallback string) string {
	if s := strings.TrimSpace(r.String()); s != "" {
		return s
	}
	return fallback
}

func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
