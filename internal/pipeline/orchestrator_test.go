package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trailcraft-group/augment-cli/internal/docstore"
	"github.com/trailcraft-group/augment-cli/internal/model"
	"github.com/trailcraft-group/augment-cli/pkg/anthropic"
	anthropicmocks "github.com/trailcraft-group/augment-cli/pkg/anthropic/mocks"
	"github.com/trailcraft-group/augment-cli/pkg/catalog"
	catalogmocks "github.com/trailcraft-group/augment-cli/pkg/catalog/mocks"
)

const guideBody = "Every camper needs a reliable tent for shelter on long trips into the backcountry.\n"

func writeGuide(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := "---\ntitle: " + name + "\n---\n" + body
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestOrchestrator(dir string, llm anthropic.Client, cat catalog.Client, opts Options) *Orchestrator {
	if opts.MinContentSize == 0 {
		opts.MinContentSize = 10
	}
	docs := docstore.New(dir, "")
	extractor := NewExtractor(llm, "claude-sonnet-4-5-20250929")
	matcher := NewMatcher(cat, 0.3, 3, 2)
	return NewOrchestrator(docs, extractor, matcher, nil, nil, "claude-sonnet-4-5-20250929", opts)
}

// expectTentExtraction wires the LLM mock to report a tent mention for any
// document whose body mentions a tent, and to fail for bodies containing
// "explode".
func expectTentExtraction(llm *anthropicmocks.MockClient) {
	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "explode")
	})).Return(nil, errors.New("model unavailable")).Maybe()

	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "tent")
	})).Return(toolUseResponse(extractionToolName, `{"mentions": [{"item": "tent", "category": "shelter"}]}`), nil)
}

func expectTentMatch(cat *catalogmocks.MockClient) {
	cat.On("Search", mock.Anything, "tent", mock.Anything, mock.Anything).
		Return(&catalog.SearchResponse{Results: []catalog.Item{
			{ID: "p1", Name: "Trail Tent X", ProductURL: "https://x/t", Price: 199, Similarity: 0.85},
		}, Total: 1}, nil)
}

func TestRun_EnhancesCorpus(t *testing.T) {
	dir := t.TempDir()
	path := writeGuide(t, dir, "guide.md", guideBody)

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	expectTentExtraction(llm)
	expectTentMatch(cat)

	orch := newTestOrchestrator(dir, llm, cat, Options{Mode: "extract"})
	report, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Processed)
	assert.Equal(t, 1, report.Stats.Enhanced)
	assert.Equal(t, 1, report.Stats.TotalProducts)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(got)
	assert.Contains(t, content, "**Recommended tent:**")
	assert.Contains(t, content, "Trail Tent X")
	assert.Contains(t, content, "$199")
	assert.Contains(t, content, "85.0%")
	assert.Contains(t, content, "gear_recommendations: \"true\"")
	// Original header untouched above the owned key.
	assert.Contains(t, content, "title: guide.md")

	// A timestamped backup of the original exists.
	backups, err := os.ReadDir(filepath.Join(dir, ".backups"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.True(t, strings.HasPrefix(backups[0].Name(), "guide."))
}

func TestRun_FaultIsolation(t *testing.T) {
	dir := t.TempDir()
	writeGuide(t, dir, "d1.md", guideBody)
	writeGuide(t, dir, "d2.md", "This document will explode during extraction, guaranteed.\n")
	writeGuide(t, dir, "d3.md", guideBody)

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	expectTentExtraction(llm)
	expectTentMatch(cat)

	orch := newTestOrchestrator(dir, llm, cat, Options{Mode: "extract"})
	report, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Stats.Processed)
	assert.Equal(t, 2, report.Stats.Enhanced)
	assert.Equal(t, 1, report.Stats.Errors)

	require.Len(t, report.Results, 3)
	assert.Equal(t, model.DocEnhanced, report.Results[0].Status)
	assert.Equal(t, model.DocErrored, report.Results[1].Status)
	assert.NotEmpty(t, report.Results[1].Error)
	assert.Equal(t, model.DocEnhanced, report.Results[2].Status)
}

func TestRun_CombinedModeCountsProductsNotBlocks(t *testing.T) {
	dir := t.TempDir()
	path := writeGuide(t, dir, "guide.md", guideBody)

	rewritten := guideBody + "\n**Recommended tent:**\n" +
		"- [Trail Tent X](https://x/t)\n" +
		"- [Ridge Tent 2](https://x/r)\n"

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: rewritten}},
		StopReason: "end_turn",
	}, nil).Once()

	docs := docstore.New(dir, "")
	rewriter := NewRewriter(llm, cat, "claude-sonnet-4-5-20250929", 0.3, 3)
	orch := NewOrchestrator(docs, nil, nil, rewriter, nil, "claude-sonnet-4-5-20250929",
		Options{Mode: "combined", MinContentSize: 10})

	report, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Enhanced)
	// One heading, two products: the stat counts bullets, same as extract mode.
	assert.Equal(t, 2, report.Stats.TotalProducts)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 2, report.Results[0].ProductsAdded)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "Ridge Tent 2")
}

func TestRun_IdempotentRerun(t *testing.T) {
	dir := t.TempDir()
	writeGuide(t, dir, "guide.md", guideBody)

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	expectTentExtraction(llm)
	expectTentMatch(cat)

	orch := newTestOrchestrator(dir, llm, cat, Options{Mode: "extract"})
	first, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, first.Stats.Enhanced)

	second, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, second.Stats.Enhanced)
	assert.Equal(t, 1, second.Stats.Skipped)
	assert.Equal(t, "already augmented", second.Results[0].Reason)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeGuide(t, dir, "guide.md", guideBody)
	before, _ := os.ReadFile(path)

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	expectTentExtraction(llm)
	expectTentMatch(cat)

	orch := newTestOrchestrator(dir, llm, cat, Options{Mode: "extract", DryRun: true})
	report, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Enhanced)
	assert.Equal(t, 1, report.Stats.TotalProducts)

	after, _ := os.ReadFile(path)
	assert.Equal(t, string(before), string(after))
	_, err = os.Stat(filepath.Join(dir, ".backups"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_ShortDocumentSkippedWithoutExtraction(t *testing.T) {
	dir := t.TempDir()
	writeGuide(t, dir, "tiny.md", "hi\n")

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)

	orch := newTestOrchestrator(dir, llm, cat, Options{Mode: "extract", MinContentSize: 200})
	report, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Skipped)
	assert.Equal(t, "content below minimum size", report.Results[0].Reason)
	llm.AssertNotCalled(t, "CreateMessage")
}

func TestRun_NoQualifyingCandidatesSkips(t *testing.T) {
	dir := t.TempDir()
	path := writeGuide(t, dir, "guide.md", guideBody)
	before, _ := os.ReadFile(path)

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	expectTentExtraction(llm)
	cat.On("Search", mock.Anything, "tent", mock.Anything, mock.Anything).
		Return(&catalog.SearchResponse{Results: []catalog.Item{
			{ID: "p1", Name: "Weak Match", Similarity: 0.2},
		}, Total: 1}, nil).Once()

	orch := newTestOrchestrator(dir, llm, cat, Options{Mode: "extract"})
	report, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Skipped)
	assert.Equal(t, "no qualifying recommendations", report.Results[0].Reason)

	after, _ := os.ReadFile(path)
	assert.Equal(t, string(before), string(after))
}

func TestRun_BackupFailureLeavesOriginalUntouched(t *testing.T) {
	dir := t.TempDir()
	path := writeGuide(t, dir, "guide.md", guideBody)
	before, _ := os.ReadFile(path)

	// Backup dir path occupied by a regular file, so backup creation fails.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	expectTentExtraction(llm)
	expectTentMatch(cat)

	docs := docstore.New(dir, blocked)
	extractor := NewExtractor(llm, "claude-sonnet-4-5-20250929")
	matcher := NewMatcher(cat, 0.3, 3, 2)
	orch := NewOrchestrator(docs, extractor, matcher, nil, nil, "claude-sonnet-4-5-20250929",
		Options{Mode: "extract", MinContentSize: 10, Pattern: "guide.md"})

	report, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)

	require.Equal(t, 1, report.Stats.Errors)
	assert.Contains(t, report.Results[0].Error, "write failed")

	after, _ := os.ReadFile(path)
	assert.Equal(t, string(before), string(after))
}

func TestRun_SkipBackup(t *testing.T) {
	dir := t.TempDir()
	writeGuide(t, dir, "guide.md", guideBody)

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	expectTentExtraction(llm)
	expectTentMatch(cat)

	orch := newTestOrchestrator(dir, llm, cat, Options{Mode: "extract", SkipBackup: true})
	report, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Enhanced)
	_, err = os.Stat(filepath.Join(dir, ".backups"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_ExplicitPaths(t *testing.T) {
	dir := t.TempDir()
	target := writeGuide(t, dir, "wanted.md", guideBody)
	writeGuide(t, dir, "ignored.md", guideBody)

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	expectTentExtraction(llm)
	expectTentMatch(cat)

	orch := newTestOrchestrator(dir, llm, cat, Options{Mode: "extract"})
	report, err := orch.Run(context.Background(), []string{target})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, target, report.Results[0].Path)
}

func TestRun_RecordsRunHistory(t *testing.T) {
	dir := t.TempDir()
	writeGuide(t, dir, "guide.md", guideBody)

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	expectTentExtraction(llm)
	expectTentMatch(cat)

	rec := &captureRecorder{}
	docs := docstore.New(dir, "")
	extractor := NewExtractor(llm, "claude-sonnet-4-5-20250929")
	matcher := NewMatcher(cat, 0.3, 3, 2)
	orch := NewOrchestrator(docs, extractor, matcher, nil, rec, "claude-sonnet-4-5-20250929",
		Options{Mode: "extract", MinContentSize: 10})

	report, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, report.RunID, rec.created.ID)
	assert.Equal(t, model.RunStatusRunning, rec.created.Status)
	require.Len(t, rec.documents, 1)
	assert.Equal(t, model.DocEnhanced, rec.documents[0].Status)
	assert.Equal(t, model.RunStatusComplete, rec.completedStatus)
	require.NotNil(t, rec.completedStats)
	assert.Equal(t, 1, rec.completedStats.Enhanced)
}

func TestRun_RecorderErrorsAreWarnOnly(t *testing.T) {
	dir := t.TempDir()
	writeGuide(t, dir, "guide.md", guideBody)

	llm := anthropicmocks.NewMockClient(t)
	cat := catalogmocks.NewMockClient(t)
	expectTentExtraction(llm)
	expectTentMatch(cat)

	rec := &captureRecorder{fail: true}
	docs := docstore.New(dir, "")
	extractor := NewExtractor(llm, "claude-sonnet-4-5-20250929")
	matcher := NewMatcher(cat, 0.3, 3, 2)
	orch := NewOrchestrator(docs, extractor, matcher, nil, rec, "claude-sonnet-4-5-20250929",
		Options{Mode: "extract", MinContentSize: 10})

	report, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.Enhanced)
}

// captureRecorder is an in-memory RunRecorder.
type captureRecorder struct {
	fail            bool
	created         model.Run
	documents       []model.DocumentResult
	completedStatus model.RunStatus
	completedStats  *model.RunStatistics
}

func (r *captureRecorder) CreateRun(_ context.Context, run model.Run) error {
	if r.fail {
		return errors.New("store down")
	}
	r.created = run
	return nil
}

func (r *captureRecorder) CompleteRun(_ context.Context, _ string, status model.RunStatus, stats *model.RunStatistics, _ string) error {
	if r.fail {
		return errors.New("store down")
	}
	r.completedStatus = status
	r.completedStats = stats
	return nil
}

func (r *captureRecorder) RecordDocument(_ context.Context, _ string, result model.DocumentResult) error {
	if r.fail {
		return errors.New("store down")
	}
	r.documents = append(r.documents, result)
	return nil
}
