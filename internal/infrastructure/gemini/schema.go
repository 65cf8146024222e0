package gemini

import "google.golang.org/genai"

// String 字符串字段
func String() *genai.Schema {
	return &genai.Schema{Type: genai.TypeString}
}

// Integer 整数字段
func Integer() *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger}
}

// Array 数组字段
func Array(items *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items}
}

// Object 对象字段
func Object(props map[string]*genai.Schema, required ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}
