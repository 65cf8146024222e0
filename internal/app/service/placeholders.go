package service

import (
	"fmt"
	"html"

	"evocoder/internal/domain/models"
)

// 以下为 demo 模式和调用失败时返回的占位数据，均为固定内容

func mockKnowledge(topic string) models.TechnicalKnowledge {
	return models.TechnicalKnowledge{
		Topic:     topic,
		Summary:   "Demo knowledge base generated offline.",
		Libraries: []models.Library{{Name: "React", Version: "18.x", Reason: "Stable default"}},
		KeyFacts:  []string{"Research is simulated in demo mode."},
	}
}

func mockStructure() models.ProjectStructure {
	return models.ProjectStructure{
		ProjectName: "Offline-Development",
		Files: []models.FileSpec{
			{Path: "src/main.ts", Purpose: "Entry"},
			{Path: "src/App.tsx", Purpose: "Root Component"},
		},
	}
}

func commentLine(path, text string) string {
	switch models.LanguageFromPath(path) {
	case "py", "sh", "bash", "rb", "yml", "yaml", "toml", "dockerfile", "text", "txt":
		return "# " + text
	case "html", "xml", "md", "svg", "vue":
		return "<!-- " + text + " -->"
	case "css", "scss", "less":
		return "/* " + text + " */"
	case "sql", "lua":
		return "-- " + text
	default:
		return "// " + text
	}
}

func mockFileContent(path string) string {
	header := commentLine(path, "Autonomous content for "+path)
	switch models.LanguageFromPath(path) {
	case "tsx", "jsx":
		return header + "\nexport default function App() { return <div>Hello</div> }\n"
	case "ts", "js":
		return header + "\nexport function main(): void {\n  console.log('Hello');\n}\n"
	case "go":
		return header + "\npackage main\n\nfunc main() {}\n"
	default:
		return header + "\n"
	}
}

func mockCompletion(path string) string {
	return "\n" + commentLine(path, "continue implementation here") + "\n"
}

func mockTests(path string) []models.TestCase {
	return []models.TestCase{
		{
			Name:        "loads " + path,
			Description: fmt.Sprintf("Verifies that %s can be loaded without errors.", path),
			Status:      models.TestPending,
			Expected:    "Module loads and exports its public surface.",
		},
		{
			Name:        "handles empty input",
			Description: "Calls the main entry point with empty input.",
			Status:      models.TestPending,
			Expected:    "No exception is raised.",
		},
	}
}

func mockAudit() models.ProjectAudit {
	return models.ProjectAudit{
		Score:   85,
		Summary: "Demo audit: no model credential configured, findings are illustrative.",
		Issues: []models.SecurityIssue{
			{
				Severity:    models.SeverityWarning,
				Category:    "configuration",
				Title:       "Model credential not configured",
				Description: "The audit ran in demo mode and did not inspect the code.",
				Remediation: "Configure GEMINI_API_KEY to run a real audit.",
			},
			{
				Severity:    models.SeverityInfo,
				Category:    "process",
				Title:       "Advisory output only",
				Description: "Audit findings are produced by a language model and are not verified.",
				Remediation: "Review findings manually before acting on them.",
			},
		},
	}
}

func mockComponent(request string) models.ComponentArtifact {
	return models.ComponentArtifact{
		Title: "Demo component",
		HTML:  `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Demo component</title>
<style>body{font-family:sans-serif;padding:2rem}button{padding:.5rem 1rem}</style></head>
<body><h1>` + html.EscapeString(request) + `</h1><button id="b">Clicked 0 times</button>
<script>let n=0;document.getElementById('b').onclick=e=>{n++;e.target.textContent='Clicked '+n+' times'}</script>
</body></html>`,
	}
}

func mockEvolution(version string) models.EvolutionPlan {
	return models.EvolutionPlan{
		Version: version + "-demo",
		Summary: "Evolution is simulated in demo mode.",
		Improvements: []string{
			"Configure a model credential to enable live evolution proposals.",
		},
	}
}
