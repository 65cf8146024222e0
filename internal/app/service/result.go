package service

import (
	"errors"
	"fmt"
	"strings"

	"evocoder/internal/domain/models"
)

// GatewayMode 网关运行模式，构造时确定
type GatewayMode int

const (
	ModeDemo GatewayMode = iota
	ModeLive
)

func (m GatewayMode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "demo"
}

// minKeyLength 短于该长度的密钥视为无效
const minKeyLength = 10

// ResolveMode 密钥存在、不是字面量 undefined 且长度超过阈值时为 live
func ResolveMode(apiKey string) GatewayMode {
	key := strings.TrimSpace(apiKey)
	if key == "" || key == "undefined" || len(key) <= minKeyLength {
		return ModeDemo
	}
	return ModeLive
}

// ResultStatus 网关调用结果的类别
type ResultStatus string

const (
	// StatusOK 真实模型输出
	StatusOK ResultStatus = "ok"
	// StatusFallback 占位输出：demo 模式（Err 为空）或 live 调用失败（Err 非空）
	StatusFallback ResultStatus = "fallback"
	// StatusFailed 没有可用的占位输出
	StatusFailed ResultStatus = "failed"
)

// Result 网关操作的带标签结果
type Result[T any] struct {
	Status  ResultStatus             `json:"status"`
	Data    T                        `json:"data"`
	Sources []models.GroundingSource `json:"sources,omitempty"`
	Err     error                    `json:"-"`
}

// OK 是否为真实模型输出
func (r Result[T]) OK() bool { return r.Status == StatusOK }

// Failed 是否没有可用数据
func (r Result[T]) Failed() bool { return r.Status == StatusFailed }

// Reason 返回失败或降级原因，没有时为空
func (r Result[T]) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func ok[T any](data T, sources []models.GroundingSource) Result[T] {
	return Result[T]{Status: StatusOK, Data: data, Sources: sources}
}

func fallback[T any](data T, err error) Result[T] {
	return Result[T]{Status: StatusFallback, Data: data, Err: err}
}

func failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailed, Err: err}
}

// errNoJSON 回复中找不到 JSON
var errNoJSON = errors.New("回复中没有 JSON 对象")

// ExtractJSONObject 截取第一个 "{" 到最后一个 "}" 之间的内容，容忍包裹文本
func ExtractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", errNoJSON
	}
	return text[start : end+1], nil
}

// stripFences 去掉整段回复外层的 markdown 代码块
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	body := strings.TrimPrefix(trimmed, "```")
	nl := strings.Index(body, "\n")
	if nl < 0 {
		return text
	}
	body = body[nl+1:]
	end := strings.LastIndex(body, "```")
	if end < 0 {
		return text
	}
	return strings.TrimRight(body[:end], " \t\r\n") + "\n"
}

func wrapOp(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
