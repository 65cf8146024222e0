package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// 模板名称
const (
	Knowledge    = "knowledge"
	Structure    = "structure"
	File         = "file"
	Improve      = "improve"
	Autocomplete = "autocomplete"
	Tests        = "tests"
	Audit        = "audit"
	Component    = "component"
	Evolve       = "evolve"
)

// Slots 模板具名插槽取值
type Slots map[string]string

// Definition 一个版本化的模板定义
type Definition struct {
	Name     string
	Version  int
	Required []string // 必须非空的插槽
	Optional []string // 可以为空的插槽

	tmpl *template.Template
}

// ID 返回 name.vN 形式的模板标识
func (d *Definition) ID() string {
	return fmt.Sprintf("%s.v%d", d.Name, d.Version)
}

var definitions = []*Definition{
	{Name: Knowledge, Version: 1, Required: []string{"Topic"}},
	{Name: Structure, Version: 1, Required: []string{"Request"}, Optional: []string{"Knowledge"}},
	{Name: File, Version: 1, Required: []string{"Path", "Request", "Context"}, Optional: []string{"Purpose", "Knowledge"}},
	{Name: Improve, Version: 1, Required: []string{"Goal", "Path"}, Optional: []string{"Content"}},
	{Name: Autocomplete, Version: 1, Required: []string{"Path"}, Optional: []string{"Prefix"}},
	{Name: Tests, Version: 1, Required: []string{"Path"}, Optional: []string{"Content"}},
	{Name: Audit, Version: 1, Required: []string{"Bundle"}, Optional: []string{"Name"}},
	{Name: Component, Version: 1, Required: []string{"Request"}},
	{Name: Evolve, Version: 1, Required: []string{"Version", "Capabilities"}},
}

var registry map[string]*Definition

func init() {
	registry = make(map[string]*Definition, len(definitions))
	for _, d := range definitions {
		file := "templates/" + d.ID() + ".tmpl"
		data, err := templateFS.ReadFile(file)
		if err != nil {
			panic(fmt.Sprintf("prompts: 缺少模板文件 %s: %v", file, err))
		}
		d.tmpl = template.Must(template.New(d.ID()).Option("missingkey=error").Parse(string(data)))
		registry[d.Name] = d
	}
}

// Lookup 返回指定名称的模板定义
func Lookup(name string) (*Definition, bool) {
	d, ok := registry[name]
	return d, ok
}

// Names 返回所有模板名称（已排序）
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render 使用插槽渲染模板
func Render(name string, slots Slots) (string, error) {
	d, ok := registry[name]
	if !ok {
		return "", fmt.Errorf("未知的提示词模板: %s", name)
	}
	return d.Render(slots)
}

// Render 校验插槽并渲染；未声明的插槽视为错误，避免调用方拼写错误被静默忽略
func (d *Definition) Render(slots Slots) (string, error) {
	data := make(map[string]string, len(d.Required)+len(d.Optional))
	declared := make(map[string]struct{}, len(d.Required)+len(d.Optional))

	for _, slot := range d.Required {
		declared[slot] = struct{}{}
		v := strings.TrimSpace(slots[slot])
		if v == "" {
			return "", fmt.Errorf("模板 %s 缺少必填插槽 %s", d.ID(), slot)
		}
		data[slot] = slots[slot]
	}
	for _, slot := range d.Optional {
		declared[slot] = struct{}{}
		data[slot] = slots[slot]
	}
	for slot := range slots {
		if _, ok := declared[slot]; !ok {
			return "", fmt.Errorf("模板 %s 不支持插槽 %s", d.ID(), slot)
		}
	}

	var buf bytes.Buffer
	if err := d.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("渲染模板 %s 失败: %w", d.ID(), err)
	}
	return buf.String(), nil
}
