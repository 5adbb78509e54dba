// internal/services/video_service_test.go
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CineScript/CineScriptStudio/internal/llm"
	"github.com/CineScript/CineScriptStudio/internal/models"
)

// immediateTick 让轮询循环不等待真实时间
func immediateTick(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// recordingNotifier 收集推送事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []VideoStatusEvent
}

func (n *recordingNotifier) NotifyVideoStatus(event VideoStatusEvent) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) snapshot() []VideoStatusEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]VideoStatusEvent{}, n.events...)
}

// waitForStatus 轮询项目状态直到镜头达到目标状态或超时
func waitForStatus(t *testing.T, projectService *ProjectService, sceneID int, want models.VideoStatus) models.GeneratedPrompt {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, p := range projectService.Current().Prompts {
			if p.SceneID == sceneID && p.VideoStatus == want {
				return p
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待镜头 %d 进入状态 %s 超时", sceneID, want)
	return models.GeneratedPrompt{}
}

func setupVideoTest(t *testing.T, provider *fakeProvider, targetModel string) (*VideoService, *ProjectService, *recordingNotifier) {
	t.Helper()
	projectService, _, _ := newTestProjectService(t)

	projectService.Apply(models.ProjectPatch{TargetModel: &targetModel})
	projectService.ReplacePrompts([]models.GeneratedPrompt{
		{SceneID: 1, PromptText: "hero shot", TechnicalSpecs: "16:9, cinematic"},
	})

	videoService := NewVideoService(projectService, newTestGenAIService(provider))
	videoService.tick = immediateTick

	notifier := &recordingNotifier{}
	videoService.SetNotifier(notifier)
	return videoService, projectService, notifier
}

func TestVideoJobCompletes(t *testing.T) {
	provider := &fakeProvider{
		pollResults: []llm.VideoJob{
			{OperationID: "op-test", Done: false},
			{OperationID: "op-test", Done: true, VideoURI: "https://video/1&key=k"},
		},
	}
	videoService, projectService, notifier := setupVideoTest(t, provider, ModelVeo)

	result, err := videoService.Start(context.Background(), 1)
	if err != nil {
		t.Fatalf("提交视频任务失败: %v", err)
	}
	if !result.Started || result.JobID == "" {
		t.Error("任务应已启动并携带任务ID")
	}
	if result.Project.Prompts[0].VideoStatus != models.VideoGenerating {
		t.Errorf("提交后状态应为 generating，实际为 %s", result.Project.Prompts[0].VideoStatus)
	}

	prompt := waitForStatus(t, projectService, 1, models.VideoCompleted)
	if prompt.VideoURL != "https://video/1&key=k" {
		t.Errorf("完成后应记录视频地址，实际为 %s", prompt.VideoURL)
	}

	events := notifier.snapshot()
	if len(events) < 2 {
		t.Fatalf("应至少推送 generating 和 completed 两个事件，实际 %d", len(events))
	}
	if events[0].Status != models.VideoGenerating || events[len(events)-1].Status != models.VideoCompleted {
		t.Error("事件顺序应为 generating → completed")
	}
}

func TestVideoJobFails(t *testing.T) {
	provider := &fakeProvider{
		pollResults: []llm.VideoJob{
			{OperationID: "op-test", Done: true, ErrMessage: "quota exceeded"},
		},
	}
	videoService, projectService, notifier := setupVideoTest(t, provider, ModelVeo)

	if _, err := videoService.Start(context.Background(), 1); err != nil {
		t.Fatalf("提交视频任务失败: %v", err)
	}

	prompt := waitForStatus(t, projectService, 1, models.VideoFailed)
	if prompt.VideoURL != "" {
		t.Error("失败的任务不应留下视频地址")
	}

	events := notifier.snapshot()
	last := events[len(events)-1]
	if last.Status != models.VideoFailed || !strings.Contains(last.Error, "quota exceeded") {
		t.Errorf("失败事件应携带原因，实际 %+v", last)
	}
}

func TestVideoRetryAfterFailure(t *testing.T) {
	provider := &fakeProvider{
		pollResults: []llm.VideoJob{
			{OperationID: "op-test", Done: true, ErrMessage: "transient"},
			{OperationID: "op-test", Done: true, VideoURI: "https://video/retry"},
		},
	}
	videoService, projectService, _ := setupVideoTest(t, provider, ModelVeo)

	videoService.Start(context.Background(), 1)
	waitForStatus(t, projectService, 1, models.VideoFailed)

	// 重试走同一入口，重新进入 generating
	if _, err := videoService.Start(context.Background(), 1); err != nil {
		t.Fatalf("重试失败: %v", err)
	}
	prompt := waitForStatus(t, projectService, 1, models.VideoCompleted)
	if prompt.VideoURL != "https://video/retry" {
		t.Errorf("重试成功后应记录新地址，实际为 %s", prompt.VideoURL)
	}
}

func TestVideoStartSubmitErrorMarksFailed(t *testing.T) {
	provider := &fakeProvider{startErr: errors.New("backend down")}
	videoService, projectService, _ := setupVideoTest(t, provider, ModelVeo)

	if _, err := videoService.Start(context.Background(), 1); err == nil {
		t.Fatal("提交失败应返回错误")
	}
	waitForStatus(t, projectService, 1, models.VideoFailed)

	if videoService.ActiveJobs() != 0 {
		t.Error("失败的任务不应残留在在途表里")
	}
}

func TestVideoCustomModelReturnsClipboard(t *testing.T) {
	videoService, projectService, _ := setupVideoTest(t, &fakeProvider{}, ModelCustom)

	result, err := videoService.Start(context.Background(), 1)
	if err != nil {
		t.Fatalf("Custom 模型不应报错: %v", err)
	}
	if result.Started {
		t.Error("Custom 模型不应提交任务")
	}
	want := "16:9, cinematic [1]_ hero shot"
	if result.Clipboard != want {
		t.Errorf("剪贴板文本应为 %q，实际为 %q", want, result.Clipboard)
	}
	if projectService.Current().Prompts[0].VideoStatus != models.VideoIdle {
		t.Error("Custom 路径下状态应保持 idle")
	}
}

func TestVideoClipboardNumbersByPosition(t *testing.T) {
	videoService, projectService, _ := setupVideoTest(t, &fakeProvider{}, ModelCustom)

	// 删除过中间条目后，编号跟随列表位置而不是 sceneId
	projectService.ReplacePrompts([]models.GeneratedPrompt{
		{SceneID: 2, PromptText: "chase", TechnicalSpecs: "16:9"},
		{SceneID: 5, PromptText: "finale", TechnicalSpecs: "16:9"},
	})

	result, err := videoService.Start(context.Background(), 5)
	if err != nil {
		t.Fatalf("Custom 模型不应报错: %v", err)
	}
	want := "16:9 [2]_ finale"
	if result.Clipboard != want {
		t.Errorf("剪贴板文本应为 %q，实际为 %q", want, result.Clipboard)
	}
}

func TestVideoPollErrorBeforeDoneFails(t *testing.T) {
	// 远端可能在 done 置位前就带回错误，任务必须立即失败而不是继续轮询
	provider := &fakeProvider{
		pollResults: []llm.VideoJob{
			{OperationID: "op-test", Done: false, ErrMessage: "internal error"},
		},
	}
	videoService, projectService, notifier := setupVideoTest(t, provider, ModelVeo)

	if _, err := videoService.Start(context.Background(), 1); err != nil {
		t.Fatalf("提交视频任务失败: %v", err)
	}

	waitForStatus(t, projectService, 1, models.VideoFailed)
	if videoService.ActiveJobs() != 0 {
		t.Error("失败的任务不应残留在在途表里")
	}

	events := notifier.snapshot()
	last := events[len(events)-1]
	if last.Status != models.VideoFailed || !strings.Contains(last.Error, "internal error") {
		t.Errorf("失败事件应携带原因，实际 %+v", last)
	}
}

func TestVideoUnsupportedModel(t *testing.T) {
	videoService, projectService, _ := setupVideoTest(t, &fakeProvider{}, "Sora")

	if _, err := videoService.Start(context.Background(), 1); !errors.Is(err, ErrModelNotSupported) {
		t.Errorf("未支持的模型应返回 ErrModelNotSupported，实际 %v", err)
	}
	if projectService.Current().Prompts[0].VideoStatus != models.VideoIdle {
		t.Error("未支持的模型不应改变状态")
	}
}

func TestVideoDuplicateStartRejected(t *testing.T) {
	// 轮询结果永远未完成，任务保持在途
	provider := &fakeProvider{
		pollResults: []llm.VideoJob{{OperationID: "op-test", Done: false}},
	}
	videoService, _, _ := setupVideoTest(t, provider, ModelVeo)
	// 任务挂起在第一次 tick 之后，避免 fake 轮询结果耗尽
	videoService.tick = func(d time.Duration) <-chan time.Time { return make(chan time.Time) }

	if _, err := videoService.Start(context.Background(), 1); err != nil {
		t.Fatalf("首次提交失败: %v", err)
	}
	if _, err := videoService.Start(context.Background(), 1); !errors.Is(err, ErrVideoJobRunning) {
		t.Errorf("重复提交应返回 ErrVideoJobRunning，实际 %v", err)
	}
}

func TestVideoMissingPrompt(t *testing.T) {
	videoService, _, _ := setupVideoTest(t, &fakeProvider{}, ModelVeo)

	if _, err := videoService.Start(context.Background(), 42); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("缺失提示词应返回 ErrPromptNotFound，实际 %v", err)
	}
}
