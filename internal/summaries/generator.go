package summaries

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/circuitbreaker"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/retry"
)

// Generator produces a summary of text. tokens is the generator's usage
// estimate for the call.
type Generator interface {
	Generate(ctx context.Context, text string, style Style) (summary string, tokens int, err error)
}

// MaxInputChars bounds how much document text is handed to a generator.
const MaxInputChars = 200_000

var sentenceBudget = map[Style]int{
	StyleBrief:    3,
	StyleStandard: 7,
	StyleDetailed: 15,
}

// ExtractiveGenerator summarizes by taking the document's leading
// sentences. It needs no external service.
type ExtractiveGenerator struct{}

func (ExtractiveGenerator) Generate(ctx context.Context, text string, style Style) (string, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	n, ok := sentenceBudget[style]
	if !ok {
		return "", 0, ErrInvalidStyle
	}
	text = truncateRunes(text, MaxInputChars)

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", 0, errors.New("no sentences to summarize")
	}
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	summary := strings.Join(sentences, " ")
	return summary, len(strings.Fields(text)) + len(strings.Fields(summary)), nil
}

// truncateRunes cuts text to at most limit bytes without splitting a rune.
func truncateRunes(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// splitSentences breaks text on terminal punctuation followed by space.
// Whitespace inside a sentence collapses to single spaces.
func splitSentences(text string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		} else if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			flush()
		}
	}
	flush()
	return out
}

// RetryingGenerator bounds each call to an inner generator with a timeout
// and retries failures with backoff. Invalid styles are not retried.
type RetryingGenerator struct {
	inner    Generator
	attempts int
	delay    time.Duration
	timeout  time.Duration
}

// NewRetryingGenerator wraps inner. timeout applies per attempt.
func NewRetryingGenerator(inner Generator, attempts int, delay, timeout time.Duration) *RetryingGenerator {
	return &RetryingGenerator{inner: inner, attempts: attempts, delay: delay, timeout: timeout}
}

func (g *RetryingGenerator) Generate(ctx context.Context, text string, style Style) (string, int, error) {
	var (
		summary string
		tokens  int
		attempt int
	)
	err := retry.Do(ctx, g.attempts, g.delay, func() error {
		attempt++
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if g.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		}
		defer cancel()

		s, t, err := g.inner.Generate(callCtx, text, style)
		if errors.Is(err, ErrInvalidStyle) {
			return retry.Permanent(err)
		}
		if err != nil {
			logging.L(ctx).Warn("summary generation attempt failed", "attempt", attempt, "error", err)
			return err
		}
		summary, tokens = s, t
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return summary, tokens, nil
}

// BreakerGenerator stops calling inner after repeated failures and fails
// fast with ErrGeneratorUnavailable until the breaker lets a probe through.
// Invalid styles and caller cancellations do not count as failures.
type BreakerGenerator struct {
	inner   Generator
	breaker *circuitbreaker.Breaker
	key     string
}

// NewBreakerGenerator wraps inner; key names the backend in the breaker.
func NewBreakerGenerator(inner Generator, key string, breaker *circuitbreaker.Breaker) *BreakerGenerator {
	return &BreakerGenerator{inner: inner, breaker: breaker, key: key}
}

// Ready reports whether a call would be attempted. The service checks it
// before consuming quota.
func (g *BreakerGenerator) Ready() bool {
	return g.breaker.Ready(g.key)
}

func (g *BreakerGenerator) Generate(ctx context.Context, text string, style Style) (string, int, error) {
	if !g.breaker.Allow(g.key) {
		return "", 0, ErrGeneratorUnavailable
	}
	summary, tokens, err := g.inner.Generate(ctx, text, style)
	switch {
	case err == nil:
		g.breaker.RecordSuccess(g.key)
	case errors.Is(err, ErrInvalidStyle), ctx.Err() != nil:
		// Not the backend's fault. A probe slot held by this call goes back.
		g.breaker.Release(g.key)
	default:
		g.breaker.RecordFailure(g.key)
	}
	return summary, tokens, err
}
