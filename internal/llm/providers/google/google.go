// internal/llm/providers/google/google.go
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/CineScript/CineScriptStudio/internal/llm"
)

func init() {
	llm.Register("google", func() llm.Provider {
		return &Provider{
			baseURL: "https://generativelanguage.googleapis.com/v1beta",
		}
	})
}

// 默认模型分工：抽取类任务用 flash，分镜/提示词合成用 pro
const (
	defaultTextModel  = "gemini-3-flash-preview"
	defaultImageModel = "gemini-2.5-flash-image"
	defaultVideoModel = "veo-3.1-fast-generate-preview"
)

type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("google_api密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = defaultTextModel
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	return nil
}

func (p *Provider) GetName() string {
	return "google gemini"
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	// 构建Gemini请求
	contents := []map[string]interface{}{
		{"role": "user", "parts": []map[string]string{{"text": req.Prompt}}},
	}

	generationConfig := map[string]interface{}{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = req.MaxTokens
	}
	if len(req.StopWords) > 0 {
		generationConfig["stopSequences"] = req.StopWords
	}
	if req.JSONMode {
		generationConfig["responseMimeType"] = "application/json"
	}

	requestBody := map[string]interface{}{
		"contents":         contents,
		"generationConfig": generationConfig,
	}

	if req.SystemPrompt != "" {
		requestBody["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]string{{"text": req.SystemPrompt}},
		}
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata struct {
			TotalTokenCount int `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, model)
	if err := p.post(ctx, url, requestBody, &result); err != nil {
		return nil, err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("gemini响应中没有候选内容")
	}

	return &llm.CompletionResponse{
		Text:         result.Candidates[0].Content.Parts[0].Text,
		FinishReason: result.Candidates[0].FinishReason,
		TokensUsed:   result.UsageMetadata.TotalTokenCount,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

// GenerateImage 调用图像模型并提取内联图像数据
func (p *Provider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultImageModel
	}

	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": []map[string]string{{"text": req.Prompt}}},
		},
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					InlineData *struct {
						MimeType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, model)
	if err := p.post(ctx, url, requestBody, &result); err != nil {
		return nil, err
	}

	for _, cand := range result.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return &llm.ImageResponse{
					DataURI: "data:image/png;base64," + part.InlineData.Data,
				}, nil
			}
		}
	}

	// 模型可能不返回图像，调用方据此保持原有 imageUrl
	return &llm.ImageResponse{}, nil
}

// StartVideoJob 提交Veo异步视频任务
func (p *Provider) StartVideoJob(ctx context.Context, req llm.VideoRequest) (*llm.VideoJob, error) {
	model := req.Model
	if model == "" {
		model = defaultVideoModel
	}
	resolution := req.Resolution
	if resolution == "" {
		resolution = "720p"
	}

	requestBody := map[string]interface{}{
		"instances": []map[string]interface{}{
			{"prompt": req.Prompt},
		},
		"parameters": map[string]interface{}{
			"numberOfVideos": 1,
			"aspectRatio":    req.AspectRatio,
			"resolution":     resolution,
		},
	}

	var result struct {
		Name string `json:"name"`
	}

	url := fmt.Sprintf("%s/models/%s:predictLongRunning", p.baseURL, model)
	if err := p.post(ctx, url, requestBody, &result); err != nil {
		return nil, err
	}

	if result.Name == "" {
		return nil, errors.New("veo未返回任务句柄")
	}

	return &llm.VideoJob{OperationID: result.Name}, nil
}

// PollVideoJob 查询一次视频任务进度
func (p *Provider) PollVideoJob(ctx context.Context, job *llm.VideoJob) (*llm.VideoJob, error) {
	var result struct {
		Name  string `json:"name"`
		Done  bool   `json:"done"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Response *struct {
			GenerateVideoResponse struct {
				GeneratedSamples []struct {
					Video struct {
						URI string `json:"uri"`
					} `json:"video"`
				} `json:"generatedSamples"`
			} `json:"generateVideoResponse"`
		} `json:"response"`
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, job.OperationID)
	if err := p.get(ctx, url, &result); err != nil {
		return nil, err
	}

	updated := &llm.VideoJob{OperationID: job.OperationID, Done: result.Done}
	if result.Error != nil {
		updated.ErrMessage = result.Error.Message
		return updated, nil
	}
	if result.Done && result.Response != nil {
		samples := result.Response.GenerateVideoResponse.GeneratedSamples
		if len(samples) == 0 || samples[0].Video.URI == "" {
			updated.ErrMessage = "视频任务完成但未返回媒体地址"
			return updated, nil
		}
		// 下载地址需要附带密钥
		updated.VideoURI = samples[0].Video.URI + "&key=" + p.apiKey
	}
	return updated, nil
}

func (p *Provider) post(ctx context.Context, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	return p.do(req, out)
}

func (p *Provider) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-goog-api-key", p.apiKey)

	return p.do(req, out)
}

func (p *Provider) do(req *http.Request, out interface{}) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("请求gemini失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取gemini响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini返回错误状态 %d: %s", resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析gemini响应失败: %w", err)
	}
	return nil
}
