package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"evocoder/internal/domain/models"
	"evocoder/internal/infrastructure/gemini"
	"evocoder/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const liveKey = "AIzaSy-test-key-000000"

type fakeGenerator struct {
	mu       sync.Mutex
	text     string
	sources  []models.GroundingSource
	err      error
	requests []gemini.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req gemini.Request) (*gemini.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &gemini.Response{Text: f.text, Sources: f.sources}, nil
}

func (f *fakeGenerator) last() gemini.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestResolveMode(t *testing.T) {
	assert.Equal(t, ModeDemo, ResolveMode(""))
	assert.Equal(t, ModeDemo, ResolveMode("undefined"))
	assert.Equal(t, ModeDemo, ResolveMode("0123456789"))
	assert.Equal(t, ModeLive, ResolveMode("01234567890"))
	assert.Equal(t, "live", ModeLive.String())
	assert.Equal(t, "demo", ModeDemo.String())
}

func TestNewGateway_NilGeneratorIsDemo(t *testing.T) {
	g := NewGateway(liveKey, nil, GatewayOptions{})
	assert.Equal(t, ModeDemo, g.Mode())
}

func TestNewGatewayFromConfig_NoKey(t *testing.T) {
	cfg := config.Default()
	cfg.Gemini.APIKey = ""
	g := NewGatewayFromConfig(context.Background(), cfg)
	assert.Equal(t, ModeDemo, g.Mode())
}

func TestGateway_DemoModeNeverCallsOut(t *testing.T) {
	gen := &fakeGenerator{}
	g := NewGateway("short", gen, GatewayOptions{})
	ctx := context.Background()

	knowledge := g.CollectKnowledge(ctx, "react")
	assert.Equal(t, StatusFallback, knowledge.Status)
	assert.NoError(t, knowledge.Err)
	assert.NotEmpty(t, knowledge.Data.Summary)

	structure := g.PlanStructure(ctx, "todo app", "")
	assert.Equal(t, StatusFallback, structure.Status)
	assert.Len(t, structure.Data.Files, 2)

	assert.NotEmpty(t, g.GenerateFileContent(ctx, FileRequest{Path: "src/main.ts"}).Data)
	assert.NotEmpty(t, g.SelfImprove(ctx, "src/main.ts", "", "goal").Data)
	assert.Equal(t, "keep", g.SelfImprove(ctx, "a.go", "keep", "goal").Data)
	assert.NotEmpty(t, g.Autocomplete(ctx, "a.py", "def").Data)
	assert.NotEmpty(t, g.GenerateTests(ctx, "a.go", "package a").Data)
	assert.NotEmpty(t, g.RunAudit(ctx, "p", nil).Data.Issues)
	assert.NotEmpty(t, g.SynthesizeComponent(ctx, "counter").Data.HTML)
	assert.NotEmpty(t, g.EvolveSystem(ctx, "1.2", "all").Data.Improvements)

	assert.Empty(t, gen.requests)
}

func TestGateway_DemoAuditIsDeterministic(t *testing.T) {
	g := NewGateway("", nil, GatewayOptions{})
	files := []models.GeneratedFile{models.NewGeneratedFile("a.go", "package a")}
	first := g.RunAudit(context.Background(), "p", files)
	second := g.RunAudit(context.Background(), "p", files)
	assert.Equal(t, first, second)
}

func TestGateway_PlanStructure_Live(t *testing.T) {
	gen := &fakeGenerator{
		text: "Here is the plan:\n```json\n" +
			`{"projectName":"todo","files":[{"path":"src/app.ts","purpose":"app"},{"path":" ","purpose":"blank"},{"path":"index.html","purpose":"page"}]}` +
			"\n```",
		sources: []models.GroundingSource{{Title: "MDN", URI: "https://developer.mozilla.org"}},
	}
	g := NewGateway(liveKey, gen, GatewayOptions{Model: "m"})

	res := g.PlanStructure(context.Background(), "todo app", "use react")
	require.True(t, res.OK(), res.Reason())
	assert.Equal(t, "todo", res.Data.ProjectName)
	assert.Equal(t, []models.FileSpec{
		{Path: "src/app.ts", Purpose: "app"},
		{Path: "index.html", Purpose: "page"},
	}, res.Data.Files)
	assert.Len(t, res.Sources, 1)

	req := gen.last()
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, config.DefaultBudgets["structure"], req.ThinkingBudget)
	assert.NotNil(t, req.Schema)
	assert.Contains(t, req.Prompt, "todo app")
	assert.Contains(t, req.Prompt, "use react")
}

func TestNewGatewayFromConfig_UsesConfiguredBudgets(t *testing.T) {
	cfg := config.Default()
	cfg.Gemini.Budgets["file"] = 123

	g := NewGatewayFromConfig(context.Background(), cfg)
	assert.Equal(t, ModeDemo, g.Mode())
	assert.Equal(t, 123, g.budget("file"))
	assert.Equal(t, config.DefaultBudgets["audit"], g.budget("audit"))
}

func TestGateway_LiveErrorFallsBack(t *testing.T) {
	boom := errors.New("boom")
	g := NewGateway(liveKey, &fakeGenerator{err: boom}, GatewayOptions{})

	res := g.PlanStructure(context.Background(), "todo app", "")
	assert.Equal(t, StatusFallback, res.Status)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, mockStructure(), res.Data)

	file := g.GenerateFileContent(context.Background(), FileRequest{Path: "a.go", Request: "r", Context: "a.go"})
	assert.Equal(t, StatusFallback, file.Status)
	assert.Equal(t, mockFileContent("a.go"), file.Data)
}

func TestGateway_UnparseableJSONFallsBack(t *testing.T) {
	g := NewGateway(liveKey, &fakeGenerator{text: "sorry, no json"}, GatewayOptions{})
	res := g.RunAudit(context.Background(), "p", []models.GeneratedFile{models.NewGeneratedFile("a.go", "x")})
	assert.Equal(t, StatusFallback, res.Status)
	assert.Error(t, res.Err)
	assert.Equal(t, mockAudit(), res.Data)
}

func TestGateway_EmptyPlanFallsBack(t *testing.T) {
	g := NewGateway(liveKey, &fakeGenerator{text: `{"projectName":"x","files":[]}`}, GatewayOptions{})
	res := g.PlanStructure(context.Background(), "todo", "")
	assert.Equal(t, StatusFallback, res.Status)
	assert.Len(t, res.Data.Files, 2)
}

func TestGateway_CollectKnowledgeFailureIsFailed(t *testing.T) {
	g := NewGateway(liveKey, &fakeGenerator{err: errors.New("quota")}, GatewayOptions{})
	res := g.CollectKnowledge(context.Background(), "react")
	assert.True(t, res.Failed())
	assert.Error(t, res.Err)
}

func TestGateway_CollectKnowledge_Live(t *testing.T) {
	gen := &fakeGenerator{
		text:    `{"summary":"React 19","libraries":[{"name":"react","version":"19","reason":"ui"}],"keyFacts":["hooks"]}`,
		sources: []models.GroundingSource{{Title: "React", URI: "https://react.dev"}},
	}
	g := NewGateway(liveKey, gen, GatewayOptions{})
	res := g.CollectKnowledge(context.Background(), "react")
	require.True(t, res.OK(), res.Reason())
	assert.Equal(t, "react", res.Data.Topic)
	assert.Equal(t, []string{"hooks"}, res.Data.KeyFacts)
	assert.Equal(t, "https://react.dev", res.Sources[0].URI)
	assert.True(t, gen.last().WebSearch)
}

func TestGateway_CancelledContextIsFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGateway(liveKey, &fakeGenerator{err: context.Canceled}, GatewayOptions{})

	res := g.GenerateFileContent(ctx, FileRequest{Path: "a.go", Request: "r", Context: "a.go"})
	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestGateway_TextResponses(t *testing.T) {
	gen := &fakeGenerator{text: "```ts\nexport const x = 1;\n```"}
	g := NewGateway(liveKey, gen, GatewayOptions{})

	res := g.GenerateFileContent(context.Background(), FileRequest{
		Path: "src/x.ts", Purpose: "const", Request: "r", Context: "src/x.ts",
	})
	require.True(t, res.OK())
	assert.Equal(t, "export const x = 1;\n", res.Data)
	assert.True(t, gen.last().WebSearch)

	gen.text = "   "
	empty := g.Autocomplete(context.Background(), "src/x.ts", "export")
	assert.Equal(t, StatusFallback, empty.Status)
	assert.ErrorIs(t, empty.Err, gemini.ErrEmptyResponse)

	gen.text = "```go\n```"
	fenced := g.GenerateFileContent(context.Background(), FileRequest{
		Path: "main.go", Purpose: "entry", Request: "r", Context: "main.go",
	})
	assert.Equal(t, StatusFallback, fenced.Status)
	assert.ErrorIs(t, fenced.Err, gemini.ErrEmptyResponse)
	assert.NotEmpty(t, strings.TrimSpace(fenced.Data))
}

func TestGateway_GenerateTests_NormalizesStatus(t *testing.T) {
	gen := &fakeGenerator{text: `{"tests":[{"name":"a","description":"d","status":"weird","expected":"e"},{"name":"b","status":"passed"}]}`}
	g := NewGateway(liveKey, gen, GatewayOptions{})

	res := g.GenerateTests(context.Background(), "a.go", "package a")
	require.True(t, res.OK())
	require.Len(t, res.Data, 2)
	assert.Equal(t, models.TestPending, res.Data[0].Status)
	assert.Equal(t, models.TestPassed, res.Data[1].Status)
}

func TestGateway_RunAudit_ClampsScore(t *testing.T) {
	gen := &fakeGenerator{text: `{"score":140,"summary":"ok","issues":[{"severity":"huge","title":"t"}]}`}
	g := NewGateway(liveKey, gen, GatewayOptions{})

	res := g.RunAudit(context.Background(), "p", []models.GeneratedFile{models.NewGeneratedFile("a.go", "package a")})
	require.True(t, res.OK())
	assert.Equal(t, 100, res.Data.Score)
	assert.Equal(t, models.SeverityInfo, res.Data.Issues[0].Severity)
	assert.Contains(t, gen.last().Prompt, "=== a.go ===")
}

func TestExtractJSONObject(t *testing.T) {
	raw, err := ExtractJSONObject("prefix {\"a\":{\"b\":1}} suffix")
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"b":1}}`, raw)

	_, err = ExtractJSONObject("no json here")
	assert.ErrorIs(t, err, errNoJSON)
	_, err = ExtractJSONObject("} backwards {")
	assert.ErrorIs(t, err, errNoJSON)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "plain", stripFences("plain"))
	assert.Equal(t, "a\nb\n", stripFences("```go\na\nb\n```"))
	assert.Equal(t, "```unterminated", stripFences("```unterminated"))
}
