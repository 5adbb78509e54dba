// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
)

// 错误定义
var (
	ErrUnknownProvider = errors.New("未知的生成服务提供者")
	ErrNoImageSupport  = errors.New("当前提供者不支持图像生成")
	ErrNoVideoSupport  = errors.New("当前提供者不支持视频生成")
)

// 请求参数标准化
type CompletionRequest struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	Temperature  float32  `json:"temperature,omitempty"`
	Model        string   `json:"model,omitempty"`
	StopWords    []string `json:"stop_words,omitempty"`
	// 要求提供者以 JSON 模式返回
	JSONMode bool `json:"json_mode,omitempty"`
}

// 响应结构标准化
type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// ImageRequest 预览图像生成请求
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// ImageResponse 预览图像生成响应
// DataURI 为 data:image/png;base64,... 形式，空串表示模型未返回图像
type ImageResponse struct {
	DataURI string `json:"data_uri"`
}

// VideoJob 是异步视频任务的句柄
type VideoJob struct {
	OperationID string `json:"operation_id"`
	Done        bool   `json:"done"`
	VideoURI    string `json:"video_uri,omitempty"`
	ErrMessage  string `json:"err_message,omitempty"`
}

// VideoRequest 异步视频任务请求
type VideoRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Model       string `json:"model,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

// Provider 定义所有文本生成提供者必须实现的接口
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 文本生成
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ImageProvider 支持静态图像生成的提供者额外实现此接口
type ImageProvider interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// VideoProvider 支持异步视频任务的提供者额外实现此接口
// StartVideoJob 提交任务并返回句柄，PollVideoJob 查询一次进度
type VideoProvider interface {
	StartVideoJob(ctx context.Context, req VideoRequest) (*VideoJob, error)
	PollVideoJob(ctx context.Context, job *VideoJob) (*VideoJob, error)
}

// 注册表和工厂函数类型
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register 注册提供者工厂
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider 创建指定名称的提供者实例
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, err
	}
	return provider, nil
}

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
