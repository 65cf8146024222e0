package models

// TestStatus 测试用例状态，由模型给出，不代表真实执行结果
type TestStatus string

const (
	TestPassed  TestStatus = "passed"
	TestFailed  TestStatus = "failed"
	TestPending TestStatus = "pending"
)

// TestCase 模型生成的测试用例描述
type TestCase struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      TestStatus `json:"status"`
	Expected    string     `json:"expected"`
	Actual      string     `json:"actual,omitempty"`
}

// Normalize 未知状态按 pending 处理
func (t TestCase) Normalize() TestCase {
	switch t.Status {
	case TestPassed, TestFailed, TestPending:
	default:
		t.Status = TestPending
	}
	return t
}

// Severity 审计问题严重级别
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// SecurityIssue 单条审计发现
type SecurityIssue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Remediation string   `json:"remediation"`
}

// ProjectAudit 一次审计结果
type ProjectAudit struct {
	Score   int             `json:"score"`
	Summary string          `json:"summary"`
	Issues  []SecurityIssue `json:"issues"`
}

// Normalize 将分数限制在 0..100，未知级别降为 info
func (a ProjectAudit) Normalize() ProjectAudit {
	if a.Score < 0 {
		a.Score = 0
	}
	if a.Score > 100 {
		a.Score = 100
	}
	issues := make([]SecurityIssue, 0, len(a.Issues))
	for _, issue := range a.Issues {
		switch issue.Severity {
		case SeverityCritical, SeverityWarning, SeverityInfo:
		default:
			issue.Severity = SeverityInfo
		}
		issues = append(issues, issue)
	}
	a.Issues = issues
	return a
}

// ComponentArtifact 独立交互组件
type ComponentArtifact struct {
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// EvolutionPlan 系统自我演进建议
type EvolutionPlan struct {
	Version      string   `json:"version"`
	Summary      string   `json:"summary"`
	Improvements []string `json:"improvements"`
}
