package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageFromPath(t *testing.T) {
	cases := []struct{ path, want string }{
		{"src/App.tsx", "tsx"},
		{"src/main.TS", "ts"},
		{"Makefile", "text"},
		{"config.d/README", "text"},
		{"config.d/Dockerfile", "text"},
		{"archive.tar.gz", "gz"},
		{"weird.", "text"},
		{"dir.v2/index.Js", "js"},
		{"", "text"},
		{".github/ci.yml", "yml"},
		{"scripts/.bashrc", "bashrc"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LanguageFromPath(tc.path), tc.path)
	}
}

func TestProjectStatus_CanTransition(t *testing.T) {
	assert.True(t, StatusIdle.CanTransition(StatusGenerating))
	assert.True(t, StatusGenerating.CanTransition(StatusOptimizing))
	assert.True(t, StatusGenerating.CanTransition(StatusReviewing))
	assert.True(t, StatusOptimizing.CanTransition(StatusCompleted))
	assert.True(t, StatusGenerating.CanTransition(StatusCompleted))
	assert.True(t, StatusCompleted.CanTransition(StatusError))

	assert.False(t, StatusCompleted.CanTransition(StatusGenerating))
	assert.False(t, StatusOptimizing.CanTransition(StatusReviewing))
	assert.False(t, StatusGenerating.CanTransition(StatusGenerating))
	assert.False(t, StatusError.CanTransition(StatusCompleted))
	assert.False(t, StatusError.CanTransition(StatusError))
}

func TestMergeSources_DedupByURI(t *testing.T) {
	a := []GroundingSource{{Title: "A", URI: "https://a"}, {Title: "B", URI: "https://b"}}
	merged := MergeSources(a, GroundingSource{Title: "A2", URI: "https://a"}, GroundingSource{Title: "C", URI: "https://c"})

	require.Len(t, merged, 3)
	assert.Equal(t, "A", merged[0].Title)
	assert.Equal(t, "https://c", merged[2].URI)
}

func TestProjectClone_IsDeep(t *testing.T) {
	p := &Project{
		Files: []GeneratedFile{NewGeneratedFile("a.go", "package a")},
		Audit: &ProjectAudit{Score: 90, Issues: []SecurityIssue{{Title: "x"}}},
	}
	cp := p.Clone()
	cp.Files[0].Content = "changed"
	cp.Audit.Issues[0].Title = "y"

	assert.Equal(t, "package a", p.Files[0].Content)
	assert.Equal(t, "x", p.Audit.Issues[0].Title)
}

func TestBundle(t *testing.T) {
	out := Bundle([]GeneratedFile{
		NewGeneratedFile("a.go", "package a"),
		NewGeneratedFile("b.go", "package b\n"),
	})
	assert.Equal(t, "=== a.go ===\npackage a\n\n=== b.go ===\npackage b\n\n", out)
}

func TestAuditNormalize(t *testing.T) {
	a := ProjectAudit{Score: 140, Issues: []SecurityIssue{{Severity: "HIGH"}}}.Normalize()
	assert.Equal(t, 100, a.Score)
	assert.Equal(t, SeverityInfo, a.Issues[0].Severity)

	assert.Equal(t, 0, ProjectAudit{Score: -3}.Normalize().Score)
}

func TestTechnicalKnowledgeDigest(t *testing.T) {
	var nilKnowledge *TechnicalKnowledge
	assert.Equal(t, "", nilKnowledge.Digest())

	k := &TechnicalKnowledge{
		Summary:   "sum",
		Libraries: []Library{{Name: "react", Version: "18", Reason: "ui"}},
		KeyFacts:  []string{"fact"},
	}
	assert.Equal(t, "sum\n- react 18: ui\n* fact", k.Digest())
}
