package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidemark-ai/recollect/internal/ai"
	"github.com/tidemark-ai/recollect/internal/db"
	"github.com/tidemark-ai/recollect/internal/logging"
)

const summarySystemPrompt = `You maintain a rolling summary of a chat conversation. ` +
	`Merge the existing summary with the new messages into one updated summary. ` +
	`Keep facts, decisions, names, and open questions. Be concise.`

// SummarizerConfig sizes the rolling summarization window
type SummarizerConfig struct {
	// VerbatimTail is the number of most recent items always kept
	// unsummarized and shown in full.
	VerbatimTail int `yaml:"verbatim_tail"`
	// Hysteresis is the margin above the verbatim tail before summarization
	// fires, and the growth required between consecutive summarizations.
	// Without it every single new item past the threshold would trigger a
	// fresh summary.
	Hysteresis int `yaml:"hysteresis"`
	// SummaryMaxChars caps the stored summary length
	SummaryMaxChars int `yaml:"summary_max_chars"`
}

// DefaultSummarizerConfig returns the built-in window sizes.
//
// The verbatim tail must be sized so that, at the expected ingestion rate,
// items are folded into the summary before the retention TTL purges them.
// The two jobs are deliberately not coupled; this is a documented sizing
// assumption, not an atomic guarantee.
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{
		VerbatimTail:    30,
		Hysteresis:      10,
		SummaryMaxChars: 2000,
	}
}

// Summarizer compresses conversation overflow into each thread's rolling
// summary via the external language-model service. Summarization is strictly
// best-effort: a provider failure leaves the prior summary untouched.
type Summarizer struct {
	store    *db.Store
	provider ai.Provider
	cfg      SummarizerConfig
}

// NewSummarizer creates a summarizer. Both store and provider may be nil;
// either absence degrades every call to a no-op/false.
func NewSummarizer(store *db.Store, provider ai.Provider, cfg SummarizerConfig) *Summarizer {
	if cfg.VerbatimTail <= 0 {
		cfg = DefaultSummarizerConfig()
	}
	return &Summarizer{store: store, provider: provider, cfg: cfg}
}

// NeedsSummarization reports whether the thread has accumulated enough
// unsummarized history to warrant compression.
func (s *Summarizer) NeedsSummarization(ctx context.Context, threadID string) (bool, error) {
	if s.store == nil {
		return false, nil
	}

	count, err := s.store.CountItems(ctx, threadID)
	if err != nil {
		return false, err
	}
	if count <= s.cfg.VerbatimTail+s.cfg.Hysteresis {
		return false, nil
	}

	last, err := s.store.GetLastSummarizedCount(ctx, threadID)
	if err != nil {
		return false, err
	}
	return count >= last+s.cfg.Hysteresis, nil
}

// SummarizeThread compresses everything older than the verbatim tail into an
// updated rolling summary. Returns true only when a new summary was written.
func (s *Summarizer) SummarizeThread(ctx context.Context, threadID string) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	if s.provider == nil {
		return false, ai.ErrNoProvider
	}

	items, err := s.store.ItemsChronological(ctx, threadID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch items: %w", err)
	}
	if len(items) <= s.cfg.VerbatimTail {
		return false, nil
	}
	overflow := items[:len(items)-s.cfg.VerbatimTail]

	prior, err := s.store.GetThreadSummary(ctx, threadID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch summary: %w", err)
	}

	prompt := buildSummaryPrompt(prior, overflow, s.cfg.SummaryMaxChars)
	updated, err := s.provider.Complete(ctx, &ai.CompletionRequest{
		System:    summarySystemPrompt,
		Prompt:    prompt,
		MaxTokens: s.cfg.SummaryMaxChars / 2,
	})
	if err != nil {
		// No update this cycle; the prior summary is still correct.
		return false, fmt.Errorf("summary generation failed: %w", err)
	}
	updated = strings.TrimSpace(updated)
	if updated == "" {
		return false, fmt.Errorf("summary generation returned empty text")
	}
	updated = truncateWithEllipsis(updated, s.cfg.SummaryMaxChars)

	if err := s.store.UpdateThreadSummary(ctx, threadID, updated); err != nil {
		return false, fmt.Errorf("failed to store summary: %w", err)
	}
	if err := s.store.SetLastSummarizedCount(ctx, threadID, len(items)); err != nil {
		logging.Warnf("failed to record summarized count for %s: %v", threadID, err)
	}
	return true, nil
}

// MaybeSummarize runs the check+act pair and swallows all errors. It is
// invoked asynchronously by the ingestor and must never affect the
// ingestion caller's outcome.
func (s *Summarizer) MaybeSummarize(ctx context.Context, threadID string) {
	needs, err := s.NeedsSummarization(ctx, threadID)
	if err != nil {
		logging.Errorf("summarization check failed for %s: %v", threadID, err)
		return
	}
	if !needs {
		return
	}
	if _, err := s.SummarizeThread(ctx, threadID); err != nil {
		logging.Errorf("summarization failed for %s: %v", threadID, err)
	}
}

// buildSummaryPrompt combines the existing summary with the overflow items'
// content into one compression request.
func buildSummaryPrompt(prior string, overflow []db.Item, maxChars int) string {
	var sb strings.Builder
	if prior != "" {
		sb.WriteString("Existing summary:\n")
		sb.WriteString(prior)
		sb.WriteString("\n\n")
	}
	sb.WriteString("New messages:\n")
	for i := range overflow {
		it := &overflow[i]
		if it.Deleted {
			continue
		}
		sb.WriteString(it.CreatedAt.Format("2006-01-02 15:04"))
		sb.WriteString(" ")
		if it.AuthorName != "" {
			sb.WriteString(it.AuthorName)
		} else {
			sb.WriteString(it.Role)
		}
		sb.WriteString(": ")
		sb.WriteString(truncateWithEllipsis(NormalizeContent(it.Content), ItemMaxChars))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("\nWrite the updated summary in at most %d characters.", maxChars))
	return sb.String()
}
