package models

// GroundingSource 模型回复引用元数据中的来源
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// MergeSources 按 URI 去重合并来源，保持首次出现的顺序
func MergeSources(existing []GroundingSource, incoming ...GroundingSource) []GroundingSource {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]GroundingSource, 0, len(existing)+len(incoming))
	for _, list := range [][]GroundingSource{existing, incoming} {
		for _, s := range list {
			if _, ok := seen[s.URI]; ok {
				continue
			}
			seen[s.URI] = struct{}{}
			merged = append(merged, s)
		}
	}
	return merged
}

// ResearchSource 研究记录中的来源
type ResearchSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
	Stars *int   `json:"stars,omitempty"`
}

// RepoStats 最佳匹配仓库的统计信息
type RepoStats struct {
	Language string `json:"language"`
	Forks    int    `json:"forks"`
	License  string `json:"license"`
}

// ScrapedData 一次研究的结果，追加写入研究库
type ScrapedData struct {
	ID               string           `json:"id"`
	Topic            string           `json:"topic"`
	Timestamp        string           `json:"timestamp"`
	Summary          string           `json:"summary"`
	TechnicalDetails []string         `json:"technicalDetails"`
	Sources          []ResearchSource `json:"sources"`
	RepoStats        *RepoStats       `json:"repoStats,omitempty"`
}

// Library 知识收集阶段推荐的库
type Library struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Reason  string `json:"reason"`
}

// TechnicalKnowledge 知识收集阶段的结构化结果
type TechnicalKnowledge struct {
	Topic     string    `json:"topic"`
	Summary   string    `json:"summary"`
	Libraries []Library `json:"libraries"`
	KeyFacts  []string  `json:"keyFacts"`
}

// Digest 将知识压缩为提示词中使用的文本
func (k *TechnicalKnowledge) Digest() string {
	if k == nil {
		return ""
	}
	out := k.Summary
	for _, lib := range k.Libraries {
		out += "\n- " + lib.Name + " " + lib.Version + ": " + lib.Reason
	}
	for _, fact := range k.KeyFacts {
		out += "\n* " + fact
	}
	return out
}
