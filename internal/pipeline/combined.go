package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trailcraft-group/augment-cli/pkg/anthropic"
	"github.com/trailcraft-group/augment-cli/pkg/catalog"
)

// searchToolName is the catalog search tool offered to the model in combined
// mode.
const searchToolName = "search_catalog"

// maxToolIterations bounds the tool loop; a model that keeps searching past
// this is treated as a failed session rather than looping forever.
const maxToolIterations = 8

const rewriteSystemPrompt = `You augment outdoor-activity guides with product recommendations.

Given a guide body, find the physical gear it mentions and use the ` + searchToolName + ` tool to look up matching catalog products. Then return the complete rewritten guide body:
- Keep all original text exactly as written.
- After relevant sections, append recommendation blocks of the form "**Recommended <item>:**" followed by one markdown bullet per product linking to its product URL, mentioning brand, price, and match percentage when known.
- Only recommend products the tool actually returned. Never invent products or URLs.
- If the tool returns nothing useful for any mentioned gear, return the body unchanged.

Your final reply must be the full guide body and nothing else.`

// Rewriter implements the combined extract+augment mode: a single tool-loop
// session in which the model searches the catalog itself and returns the
// fully rewritten body.
type Rewriter struct {
	llm       anthropic.Client
	catalog   catalog.Client
	model     string
	threshold float64
	limit     int

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// NewRewriter creates a Rewriter. threshold and limit apply to the tool's
// search results before they are shown to the model.
func NewRewriter(llm anthropic.Client, c catalog.Client, modelID string, threshold float64, limit int) *Rewriter {
	return &Rewriter{
		llm:       llm,
		catalog:   c,
		model:     modelID,
		threshold: threshold,
		limit:     limit,
	}
}

// Usage returns the token usage accumulated across all rewrite sessions.
func (r *Rewriter) Usage() anthropic.TokenUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}

// Rewrite runs the tool loop and returns the rewritten body. A body the
// model left unchanged is a valid outcome; the caller decides what an
// unchanged body means.
func (r *Rewriter) Rewrite(ctx context.Context, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return body, nil
	}

	messages := []anthropic.Message{
		{Role: "user", Content: body},
	}

	for iter := 0; iter < maxToolIterations; iter++ {
		resp, err := r.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:      r.model,
			MaxTokens:  8192,
			System:     anthropic.BuildCachedSystemBlocks(rewriteSystemPrompt),
			Messages:   messages,
			Tools:      []anthropic.ToolDef{searchTool()},
			ToolChoice: "auto",
		})
		if err != nil {
			return "", NewExtractionError(err)
		}
		r.mu.Lock()
		r.usage.Add(resp.Usage)
		r.mu.Unlock()
		resp.Usage.LogCost(r.model, "rewrite")

		uses := resp.ToolUses()
		if resp.StopReason != "tool_use" || len(uses) == 0 {
			text := strings.TrimSpace(resp.TextContent())
			if text == "" {
				return "", NewExtractionError(eris.Errorf("model returned empty rewrite (stop_reason %s)", resp.StopReason))
			}
			return text, nil
		}

		messages = append(messages, echoAssistant(resp))

		var results []anthropic.MessageBlock
		for _, use := range uses {
			results = append(results, r.runSearchTool(ctx, use))
		}
		messages = append(messages, anthropic.Message{Role: "user", Blocks: results})
	}

	return "", NewExtractionError(eris.Errorf("tool loop exceeded %d iterations", maxToolIterations))
}

// runSearchTool executes one search_catalog invocation. Search failures come
// back to the model as error tool results so the session can degrade instead
// of aborting.
func (r *Rewriter) runSearchTool(ctx context.Context, use anthropic.ContentBlock) anthropic.MessageBlock {
	var input struct {
		Query    string `json:"query"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(use.Input, &input); err != nil || strings.TrimSpace(input.Query) == "" {
		return toolError(use.ID, "invalid search input: query is required")
	}

	resp, err := r.catalog.Search(ctx, input.Query,
		catalog.WithLimit(r.limit),
		catalog.WithCategory(input.Category),
	)
	if err != nil {
		zap.L().Warn("catalog search degraded",
			zap.String("query", input.Query),
			zap.Error(err),
		)
		return toolError(use.ID, "catalog search unavailable")
	}

	kept := resp.Results[:0:0]
	for _, item := range resp.Results {
		if item.Similarity >= r.threshold {
			kept = append(kept, item)
		}
	}
	if len(kept) > r.limit && r.limit > 0 {
		kept = kept[:r.limit]
	}

	payload, err := json.Marshal(kept)
	if err != nil {
		return toolError(use.ID, "catalog result not serializable")
	}
	return anthropic.MessageBlock{
		Type:      "tool_result",
		ToolUseID: use.ID,
		Text:      string(payload),
	}
}

func searchTool() anthropic.ToolDef {
	return anthropic.ToolDef{
		Name:        searchToolName,
		Description: "Semantic search over the product catalog. Returns ranked products with similarity scores.",
		InputSchema: map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Free-text gear query, e.g. \"2-person backpacking tent\".",
			},
			"category": map[string]any{
				"type":        "string",
				"enum":        gearCategories,
				"description": "Optional category filter.",
			},
		},
		Required: []string{"query"},
	}
}

func toolError(toolUseID, msg string) anthropic.MessageBlock {
	return anthropic.MessageBlock{
		Type:      "tool_result",
		ToolUseID: toolUseID,
		Text:      msg,
		IsError:   true,
	}
}

// echoAssistant converts a response into the assistant message required to
// continue a tool-use conversation.
func echoAssistant(resp *anthropic.MessageResponse) anthropic.Message {
	blocks := make([]anthropic.MessageBlock, 0, len(resp.Content))
	for _, b := range resp.Content {
		switch b.Type {
		case "tool_use":
			blocks = append(blocks, anthropic.MessageBlock{
				Type:      "tool_use",
				ToolUseID: b.ID,
				ToolName:  b.Name,
				Input:     b.Input,
			})
		default:
			if b.Text != "" {
				blocks = append(blocks, anthropic.MessageBlock{Type: "text", Text: b.Text})
			}
		}
	}
	return anthropic.Message{Role: "assistant", Blocks: blocks}
}
