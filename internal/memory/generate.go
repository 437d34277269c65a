package memory

import (
	"context"
	"fmt"

	"github.com/tidemark-ai/recollect/internal/ai"
	"github.com/tidemark-ai/recollect/internal/db"
	"github.com/tidemark-ai/recollect/internal/logging"
)

// Generator ties context packs, run records, and the language-model provider
// together for one reply generation. The run record is the idempotency guard:
// a trigger whose prior run already succeeded is never generated twice.
type Generator struct {
	store    *db.Store
	builder  *Builder
	ingestor *Ingestor
	provider ai.Provider
	model    string
}

// NewGenerator creates a generator. provider may be nil, in which case
// Generate fails the run with a provider error.
func NewGenerator(store *db.Store, builder *Builder, ingestor *Ingestor, provider ai.Provider, model string) *Generator {
	return &Generator{
		store:    store,
		builder:  builder,
		ingestor: ingestor,
		provider: provider,
		model:    model,
	}
}

// GenerateResult is the outcome of one generation attempt
type GenerateResult struct {
	Reply   string       `json:"reply,omitempty"`
	RunID   string       `json:"run_id,omitempty"`
	Skipped bool         `json:"skipped,omitempty"` // a prior run for this trigger already succeeded
	Pack    *ContextPack `json:"-"`
}

// Generate produces a reply for a thread, guarded by run idempotency. The
// reply is recorded as an outgoing assistant item so future packs see the
// full exchange.
func (g *Generator) Generate(ctx context.Context, threadID, triggerSourceID, instruction string, pol Policy) (*GenerateResult, error) {
	if g.store == nil {
		return &GenerateResult{}, nil
	}

	triggerItemID := ""
	if triggerSourceID != "" {
		if it, err := g.store.GetItemBySourceID(ctx, triggerSourceID); err == nil {
			triggerItemID = it.ID
		}
	}

	if triggerItemID != "" {
		prior, err := g.store.FindSucceededRunForTrigger(ctx, triggerItemID)
		if err != nil {
			logging.Errorf("run lookup failed for trigger %s: %v", triggerItemID, err)
		} else if prior != nil {
			return &GenerateResult{RunID: prior.ID, Skipped: true}, nil
		}
	}

	providerName := ""
	if g.provider != nil {
		providerName = g.provider.ID()
	}
	run, err := g.store.StartRun(ctx, threadID, triggerItemID, providerName, g.model)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	pack := g.builder.BuildContextPack(ctx, threadID, triggerSourceID, pol)

	if g.provider == nil {
		_ = g.store.FinishRun(ctx, run.ID, db.RunStatusFailed, ai.ErrNoProvider.Error(), nil, 0)
		return nil, ai.ErrNoProvider
	}

	prompt := instruction
	if !pack.Empty() {
		prompt = pack.Transcript + "\n\n" + instruction
	}

	reply, err := g.provider.Complete(ctx, &ai.CompletionRequest{Prompt: prompt})
	if err != nil {
		_ = g.store.FinishRun(ctx, run.ID, db.RunStatusFailed, err.Error(), selectedIDs(pack), 0)
		return nil, err
	}

	tokenEstimate := len(prompt) / 4
	if err := g.store.FinishRun(ctx, run.ID, db.RunStatusSucceeded, "", selectedIDs(pack), tokenEstimate); err != nil {
		logging.Errorf("failed to finish run %s: %v", run.ID, err)
	}

	if g.ingestor != nil {
		if _, err := g.ingestor.IngestOutgoing(ctx, threadID, reply, run.ID); err != nil {
			logging.Errorf("failed to record outgoing reply for %s: %v", threadID, err)
		}
	}

	return &GenerateResult{Reply: reply, RunID: run.ID, Pack: pack}, nil
}

// selectedIDs lists the item IDs that made it into the pack
func selectedIDs(pack *ContextPack) []string {
	if pack == nil {
		return nil
	}
	ids := make([]string, 0, len(pack.Messages))
	for i := range pack.Messages {
		ids = append(ids, pack.Messages[i].ItemID)
	}
	return ids
}
