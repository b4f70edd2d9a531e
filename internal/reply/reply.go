// Package reply turns a raw assistant reply into display-ready blocks.
package reply

import (
	"go.uber.org/zap"

	"github.com/samsaffron/wazuh-chat/internal/config"
	"github.com/samsaffron/wazuh-chat/internal/dedupe"
	"github.com/samsaffron/wazuh-chat/internal/markdown"
)

// Result is the outcome of processing one reply.
type Result struct {
	Cleaned string
	Blocks  []markdown.Block
	Dropped dedupe.Stats
}

// Pipeline runs deduplication followed by markdown parsing. A nil Dedupe
// skips deduplication. Pipelines hold no per-call state.
type Pipeline struct {
	Dedupe   *dedupe.Deduplicator
	Markdown markdown.Options
	Logger   *zap.Logger
}

// Default returns a pipeline with the default policy and parser options.
func Default() *Pipeline {
	return &Pipeline{Dedupe: dedupe.Default()}
}

// FromConfig builds a pipeline from the dedupe and render sections.
func FromConfig(dc config.DedupeConfig, rc config.RenderConfig, logger *zap.Logger) *Pipeline {
	p := &Pipeline{
		Markdown: markdown.Options{DropUnterminatedFence: rc.DropUnterminatedFence},
		Logger:   logger,
	}
	if dc.Enabled {
		policy := dedupe.DefaultPolicy().
			WithThresholds(dc.MinLength, dc.MinSummaryFields, dc.MinLeadInBold, dc.LeadInPhrases).
			Without(dc.DisabledRules...)
		p.Dedupe = dedupe.New(policy)
	}
	return p
}

// Process cleans text and parses it into blocks.
func (p *Pipeline) Process(text string) Result {
	res := Result{Cleaned: text}
	if p.Dedupe != nil {
		res.Cleaned, res.Dropped = p.Dedupe.DeduplicateWithStats(text)
	}
	res.Blocks = p.Markdown.Render(res.Cleaned)

	if p.Logger != nil && res.Dropped.Total() > 0 {
		p.Logger.Debug("dropped redundant reply lines",
			zap.Int("dropped", res.Dropped.Total()),
			zap.Any("rules", map[string]int(res.Dropped)),
			zap.Int("blocks", len(res.Blocks)),
		)
	}
	return res
}
