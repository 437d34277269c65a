package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tidemark-ai/recollect/internal/db"
	"github.com/tidemark-ai/recollect/internal/logging"
)

// candidateWindow is the fixed number of recent items fetched as selection
// candidates, before the policy's target size is applied.
const candidateWindow = 80

// Summary block delimiters
const (
	summaryHeader = "=== Conversation summary ==="
	recentHeader  = "=== Recent conversation ==="
)

// Policy is the per-conversation context policy. It is supplied by the
// caller's configuration resolver; the builder itself is policy-agnostic.
type Policy struct {
	RecentMessages      int  `yaml:"recent_messages" json:"recent_messages"`
	MaxAgeHours         int  `yaml:"max_age_hours" json:"max_age_hours"`
	UseSummary          bool `yaml:"use_summary" json:"use_summary"`
	MaxTranscriptChars  int  `yaml:"max_transcript_chars" json:"max_transcript_chars"`
	IncludeExtraContext bool `yaml:"include_extra_context" json:"include_extra_context"`
}

// DefaultPolicy returns the system default context policy
func DefaultPolicy() Policy {
	return Policy{
		RecentMessages:      15,
		MaxAgeHours:         48,
		UseSummary:          true,
		MaxTranscriptChars:  6000,
		IncludeExtraContext: true,
	}
}

// PackMessage is one normalized message inside a context pack
type PackMessage struct {
	ItemID      string    `json:"item_id"`
	SourceID    string    `json:"source_id,omitempty"`
	Author      string    `json:"author"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	IsAssistant bool      `json:"is_assistant,omitempty"`
	IsReply     bool      `json:"is_reply,omitempty"`
	MentionsBot bool      `json:"mentions_bot,omitempty"`
	HasImage    bool      `json:"has_image,omitempty"`
	HasFile     bool      `json:"has_file,omitempty"`
}

// ContextPack is the bounded, formatted bundle handed to a language-model
// caller. It is a value object; nothing here is persisted.
type ContextPack struct {
	ThreadID    string        `json:"thread_id"`
	Summary     string        `json:"summary,omitempty"`
	Messages    []PackMessage `json:"messages"` // chronological, oldest first
	Transcript  string        `json:"transcript"`
	Trigger     *PackMessage  `json:"trigger,omitempty"`
	ReplyTarget *PackMessage  `json:"reply_target,omitempty"`
	TotalChars  int           `json:"total_chars"`
}

// Empty reports whether the pack carries no context at all
func (p *ContextPack) Empty() bool {
	return p == nil || (len(p.Messages) == 0 && p.Summary == "")
}

// Builder assembles context packs from the thread store and item log
type Builder struct {
	store *db.Store
	cache ItemCache
}

// NewBuilder creates a context pack builder. store may be nil (degraded
// mode: every build returns an empty pack).
func NewBuilder(store *db.Store, cache ItemCache) *Builder {
	return &Builder{store: store, cache: cache}
}

// BuildContextPack assembles the context pack for a thread. triggerSourceID
// optionally names the message being replied to. Storage failures degrade to
// a nil pack (caller proceeds with no memory); a thread with no items and no
// summary yields an explicit empty pack, not an error.
func (b *Builder) BuildContextPack(ctx context.Context, threadID, triggerSourceID string, pol Policy) *ContextPack {
	if b.store == nil {
		return &ContextPack{ThreadID: threadID}
	}
	if pol.RecentMessages <= 0 {
		pol.RecentMessages = DefaultPolicy().RecentMessages
	}
	if pol.MaxTranscriptChars <= 0 {
		pol.MaxTranscriptChars = DefaultPolicy().MaxTranscriptChars
	}

	// Step A: candidate fetch, newest first
	maxAge := time.Duration(pol.MaxAgeHours) * time.Hour
	candidates, err := b.store.RecentItems(ctx, threadID, candidateWindow, maxAge)
	if err != nil {
		logging.Errorf("context build failed fetching items for %s: %v", threadID, err)
		return nil
	}

	summary := ""
	if pol.UseSummary {
		summary, err = b.store.GetThreadSummary(ctx, threadID)
		if err != nil {
			logging.Errorf("context build failed fetching summary for %s: %v", threadID, err)
			return nil
		}
	}

	if len(candidates) == 0 && summary == "" {
		return &ContextPack{ThreadID: threadID}
	}

	// Step C: deterministic priority selection into a bounded set. The rule
	// order guarantees the immediate conversational thread survives
	// truncation even when the window is dominated by unrelated chatter.
	selected := make(map[string]db.Item)
	order := []string{}
	add := func(it *db.Item) {
		if it == nil {
			return
		}
		if _, ok := selected[it.ID]; ok {
			return
		}
		selected[it.ID] = *it
		order = append(order, it.ID)
	}

	// Rule 1: the trigger itself
	trigger := b.resolveBySourceID(ctx, candidates, triggerSourceID)
	add(trigger)

	// Rule 2: the trigger's reply target
	var replyTarget *db.Item
	if trigger != nil && trigger.Metadata.ReplyTo != "" && pol.IncludeExtraContext {
		replyTarget = b.resolveBySourceID(ctx, candidates, trigger.Metadata.ReplyTo)
		add(replyTarget)
	}

	// Rule 3: the last prior exchange with the assistant, as a pair
	if pol.IncludeExtraContext {
		userItem, botItem := lastAssistantExchange(candidates, trigger)
		add(userItem)
		add(botItem)
	}

	// Rule 4: fill remaining capacity strictly by recency
	for i := range candidates {
		if len(selected) >= pol.RecentMessages {
			break
		}
		if candidates[i].Deleted {
			continue
		}
		add(&candidates[i])
	}

	// Step D: chronological ordering and normalization
	items := make([]db.Item, 0, len(selected))
	for _, id := range order {
		items = append(items, selected[id])
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})

	messages := make([]PackMessage, 0, len(items))
	for i := range items {
		messages = append(messages, toPackMessage(&items[i]))
	}

	pack := &ContextPack{
		ThreadID: threadID,
		Summary:  summary,
		Messages: messages,
	}
	if trigger != nil {
		pm := toPackMessage(trigger)
		pack.Trigger = &pm
	}
	if replyTarget != nil {
		pm := toPackMessage(replyTarget)
		pack.ReplyTarget = &pm
	}

	// Step E: render and enforce the character budget
	pack.Messages, pack.Transcript = renderBudgeted(summary, messages, pol.MaxTranscriptChars)
	pack.TotalChars = len(pack.Transcript)
	return pack
}

// resolveBySourceID finds an item by source ID: candidate list first, then
// the recent-item cache, then the store. A missing item is simply absent
// (it may have been purged between fetch and use).
func (b *Builder) resolveBySourceID(ctx context.Context, candidates []db.Item, sourceID string) *db.Item {
	if sourceID == "" {
		return nil
	}
	for i := range candidates {
		if candidates[i].SourceID == sourceID {
			return &candidates[i]
		}
	}
	if b.cache != nil {
		if it, ok := b.cache.Get(sourceID); ok {
			return it
		}
	}
	it, err := b.store.GetItemBySourceID(ctx, sourceID)
	if err != nil {
		return nil
	}
	return it
}

// lastAssistantExchange finds the most recent prior exchange where a
// non-assistant item addressed the assistant and the assistant subsequently
// replied. Both halves are returned as a continuity anchor; either may be
// nil when no such exchange exists in the candidate window.
func lastAssistantExchange(candidates []db.Item, trigger *db.Item) (*db.Item, *db.Item) {
	// candidates are newest first
	for i := range candidates {
		bot := &candidates[i]
		if bot.Role != "assistant" || bot.Deleted {
			continue
		}
		if trigger != nil && bot.ID == trigger.ID {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			user := &candidates[j]
			if user.Role == "assistant" || user.Deleted {
				continue
			}
			if user.Metadata.MentionsBot {
				return user, bot
			}
		}
		// Assistant replies without an addressed predecessor still anchor
		// continuity on their own.
		return nil, bot
	}
	return nil, nil
}

// toPackMessage normalizes a stored item into its pack representation
func toPackMessage(it *db.Item) PackMessage {
	hasFile := len(it.Metadata.Attachments) > 0
	hasImage := hasImageAttachment(it)
	author := it.AuthorName
	if author == "" {
		if it.Role == "assistant" {
			author = "assistant"
		} else {
			author = "unknown"
		}
	}
	return PackMessage{
		ItemID:      it.ID,
		SourceID:    it.SourceID,
		Author:      author,
		Role:        it.Role,
		Content:     normalizeItemContent(it),
		Timestamp:   it.CreatedAt,
		IsAssistant: it.Role == "assistant",
		IsReply:     it.Metadata.ReplyTo != "",
		MentionsBot: it.Metadata.MentionsBot,
		HasImage:    hasImage,
		HasFile:     hasFile && !hasImage,
	}
}

// formatLine renders one transcript line: [time] author (indicators): content
func formatLine(m *PackMessage) string {
	var indicators []string
	if m.IsAssistant {
		indicators = append(indicators, "assistant")
	}
	if m.MentionsBot {
		indicators = append(indicators, "@bot")
	}
	if m.IsReply {
		indicators = append(indicators, "reply")
	}
	if m.HasImage {
		indicators = append(indicators, "image")
	}
	if m.HasFile {
		indicators = append(indicators, "attachment")
	}

	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(m.Timestamp.Format("15:04"))
	sb.WriteString("] ")
	sb.WriteString(m.Author)
	if len(indicators) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(indicators, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(m.Content)
	return sb.String()
}

// renderBudgeted renders the transcript and enforces the character budget by
// dropping whole lines from the oldest end. The summary block is never
// dropped and no line is ever cut mid-content.
func renderBudgeted(summary string, messages []PackMessage, budget int) ([]PackMessage, string) {
	prefix := ""
	if summary != "" {
		prefix = summaryHeader + "\n" + summary + "\n" + recentHeader + "\n"
	}

	lines := make([]string, len(messages))
	total := len(prefix)
	for i := range messages {
		lines[i] = formatLine(&messages[i])
		total += len(lines[i]) + 1 // newline
	}

	drop := 0
	for total > budget && drop < len(lines) {
		total -= len(lines[drop]) + 1
		drop++
	}

	kept := messages[drop:]
	var sb strings.Builder
	sb.WriteString(prefix)
	for i := drop; i < len(lines); i++ {
		sb.WriteString(lines[i])
		if i < len(lines)-1 {
			sb.WriteString("\n")
		}
	}
	return kept, strings.TrimRight(sb.String(), "\n")
}
