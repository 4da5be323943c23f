package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trailcraft-group/augment-cli/internal/model"
	"github.com/trailcraft-group/augment-cli/pkg/anthropic"
)

// extractionToolName is the forced tool the model must call to report its
// findings; forcing the call keeps the output machine-parseable.
const extractionToolName = "record_gear_mentions"

// gearCategories is the fixed label set the model classifies mentions into.
// Anything outside this set is coerced to uncategorized.
var gearCategories = []string{
	"shelter",
	"sleeping",
	"cooking",
	"apparel",
	"footwear",
	"navigation",
	"hydration",
	"safety",
	"lighting",
	"packs",
}

const extractionSystemPrompt = `You analyze outdoor-activity guides (hiking, camping, backpacking, climbing) and identify every distinct piece of physical gear or equipment the text mentions.

Rules:
- Only physical equipment a reader could buy counts: tents, stoves, boots, headlamps, water filters, and the like. Do not record places, activities, foods, or abstract concepts.
- Record each distinct item once, using a short generic product name (e.g. "sleeping bag", not "my trusty old sleeping bag").
- Classify each item into exactly one of the allowed categories when one fits; otherwise leave the category empty.
- Include a short snippet of the surrounding sentence as context.
- When the guide mentions no gear at all, call the tool with an empty list.

Always report your findings by calling the ` + extractionToolName + ` tool.`

// Extractor pulls structured gear mentions out of a guide body with one
// language-model session per document.
type Extractor struct {
	llm   anthropic.Client
	model string

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// NewExtractor creates an Extractor using the given model.
func NewExtractor(llm anthropic.Client, modelID string) *Extractor {
	return &Extractor{llm: llm, model: modelID}
}

// Usage returns the token usage accumulated across all extractions.
func (e *Extractor) Usage() anthropic.TokenUsage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usage
}

// Extract returns the distinct gear mentions in body, deduplicated by
// normalized item name in first-seen order. Empty or whitespace-only input
// short-circuits to an empty list without an API call. Model or validation
// failures surface as ExtractionError; there is no retry at this level.
func (e *Extractor) Extract(ctx context.Context, body string) ([]model.GearMention, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	resp, err := e.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 4096,
		System:    anthropic.BuildCachedSystemBlocks(extractionSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: body},
		},
		Tools:      []anthropic.ToolDef{extractionTool()},
		ToolChoice: extractionToolName,
	})
	if err != nil {
		return nil, NewExtractionError(err)
	}

	e.mu.Lock()
	e.usage.Add(resp.Usage)
	e.mu.Unlock()
	resp.Usage.LogCost(e.model, "extract")

	use := resp.FirstToolUse(extractionToolName)
	if use == nil {
		return nil, NewExtractionError(eris.Errorf("model returned no %s tool call (stop_reason %s)", extractionToolName, resp.StopReason))
	}

	mentions, err := parseMentions(use.Input)
	if err != nil {
		return nil, NewExtractionError(err)
	}

	zap.L().Debug("extracted gear mentions", zap.Int("count", len(mentions)))
	return mentions, nil
}

func extractionTool() anthropic.ToolDef {
	return anthropic.ToolDef{
		Name:        extractionToolName,
		Description: "Record every distinct piece of physical outdoor gear mentioned in the guide.",
		InputSchema: map[string]any{
			"mentions": map[string]any{
				"type":        "array",
				"description": "All distinct gear items found in the guide.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"item": map[string]any{
							"type":        "string",
							"description": "Short generic product name, e.g. \"sleeping bag\".",
						},
						"category": map[string]any{
							"type": "string",
							"enum": gearCategories,
						},
						"context": map[string]any{
							"type":        "string",
							"description": "Snippet of the sentence the item appears in.",
						},
					},
					"required": []string{"item"},
				},
			},
		},
		Required: []string{"mentions"},
	}
}

// parseMentions validates and coerces the loosely-typed tool input into
// GearMention values. A non-string or empty item name fails the whole
// extraction; an unknown category is coerced to empty rather than rejected.
func parseMentions(input json.RawMessage) ([]model.GearMention, error) {
	var payload struct {
		Mentions []struct {
			Item     any `json:"item"`
			Category any `json:"category"`
			Context  any `json:"context"`
		} `json:"mentions"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return nil, eris.Wrap(err, "malformed tool input")
	}

	seen := make(map[string]bool, len(payload.Mentions))
	mentions := make([]model.GearMention, 0, len(payload.Mentions))
	for i, m := range payload.Mentions {
		item, ok := m.Item.(string)
		if !ok || strings.TrimSpace(item) == "" {
			return nil, eris.Errorf("mention %d has no usable item name (%v)", i, m.Item)
		}
		item = strings.TrimSpace(item)

		key := model.NormalizeItem(item)
		if seen[key] {
			continue
		}
		seen[key] = true

		mentions = append(mentions, model.GearMention{
			Item:     item,
			Category: coerceCategory(m.Category),
			Context:  coerceString(m.Context),
		})
	}
	return mentions, nil
}

func coerceCategory(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range gearCategories {
		if s == c {
			return c
		}
	}
	return ""
}

func coerceString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
