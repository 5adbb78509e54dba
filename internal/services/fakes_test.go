// internal/services/fakes_test.go
package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/CineScript/CineScriptStudio/internal/llm"
	"github.com/CineScript/CineScriptStudio/internal/storage"
)

// fakeProvider 可编程的测试提供者，同时支持文本/图像/视频
type fakeProvider struct {
	mu sync.Mutex

	// CompleteText 按调用顺序弹出的响应文本
	textQueue []string
	textErr   error
	requests  []llm.CompletionRequest

	imageDataURI string
	imageErr     error

	startErr    error
	pollResults []llm.VideoJob
	pollErr     error
	pollCalls   int
}

func (f *fakeProvider) Initialize(config map[string]string) error { return nil }
func (f *fakeProvider) GetName() string                           { return "fake" }

func (f *fakeProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.textErr != nil {
		return nil, f.textErr
	}
	if len(f.textQueue) == 0 {
		return nil, fmt.Errorf("fakeProvider: 没有预置的响应")
	}
	text := f.textQueue[0]
	f.textQueue = f.textQueue[1:]
	return &llm.CompletionResponse{Text: text, ProviderName: "fake"}, nil
}

func (f *fakeProvider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return &llm.ImageResponse{DataURI: f.imageDataURI}, nil
}

func (f *fakeProvider) StartVideoJob(ctx context.Context, req llm.VideoRequest) (*llm.VideoJob, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &llm.VideoJob{OperationID: "op-test"}, nil
}

func (f *fakeProvider) PollVideoJob(ctx context.Context, job *llm.VideoJob) (*llm.VideoJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.pollCalls >= len(f.pollResults) {
		return nil, fmt.Errorf("fakeProvider: 没有预置的轮询结果")
	}
	result := f.pollResults[f.pollCalls]
	f.pollCalls++
	return &result, nil
}

// newTestProjectService 在临时目录上创建项目服务
func newTestProjectService(t *testing.T) (*ProjectService, *storage.FileStorage, string) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "cinescript_test_*")
	if err != nil {
		t.Fatalf("创建临时测试目录失败: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	fileStorage, err := storage.NewFileStorage(tempDir)
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}

	projectService, err := NewProjectService(fileStorage, "")
	if err != nil {
		t.Fatalf("创建项目服务失败: %v", err)
	}
	return projectService, fileStorage, tempDir
}

// newTestGenAIService 用指定 fake 创建生成服务
func newTestGenAIService(provider *fakeProvider) *GenAIService {
	return NewGenAIServiceWithProvider(provider)
}
