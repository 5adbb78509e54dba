// internal/services/video_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CineScript/CineScriptStudio/internal/llm"
	"github.com/CineScript/CineScriptStudio/internal/models"
	"github.com/CineScript/CineScriptStudio/internal/utils"
)

// 目标模型的路由值
const (
	ModelVeo    = "Google Veo"
	ModelFlow   = "Google Flow"
	ModelCustom = "Custom"
)

// 任务轮询固定间隔，远端没有进度回调
const videoPollInterval = 10 * time.Second

var (
	ErrModelNotSupported = errors.New("target model not supported for direct generation")
	ErrVideoJobRunning   = errors.New("video job already running for this scene")
)

// VideoStatusEvent 推送给前端的视频状态变更
type VideoStatusEvent struct {
	SceneID  int                `json:"scene_id"`
	JobID    string             `json:"job_id,omitempty"`
	Status   models.VideoStatus `json:"status"`
	VideoURL string             `json:"video_url,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// VideoNotifier 状态推送的出口，由 WebSocket 集线器实现
type VideoNotifier interface {
	NotifyVideoStatus(event VideoStatusEvent)
}

// VideoStart 一次启动请求的结果
// Started 为 false 且 Clipboard 非空表示走了"手动复制"路径
type VideoStart struct {
	Started   bool           `json:"started"`
	JobID     string         `json:"job_id,omitempty"`
	Clipboard string         `json:"clipboard,omitempty"`
	Project   models.Project `json:"project"`
}

// VideoService 管理每个镜头的视频生成状态机
// idle → generating → {completed, failed}；retry/regenerate 重新进入 generating
type VideoService struct {
	projects *ProjectService
	genai    *GenAIService
	notifier VideoNotifier

	mu     sync.Mutex
	active map[int]string // sceneID -> jobID

	// tick 是测试注入点，默认 time.After
	tick func(d time.Duration) <-chan time.Time
}

// NewVideoService 创建视频任务服务
func NewVideoService(projects *ProjectService, genai *GenAIService) *VideoService {
	return &VideoService{
		projects: projects,
		genai:    genai,
		active:   map[int]string{},
		tick: func(d time.Duration) <-chan time.Time {
			return time.After(d)
		},
	}
}

// SetNotifier 注入状态推送出口
func (s *VideoService) SetNotifier(notifier VideoNotifier) {
	s.notifier = notifier
}

func (s *VideoService) notify(event VideoStatusEvent) {
	if s.notifier != nil {
		s.notifier.NotifyVideoStatus(event)
	}
}

// ActiveJobs 返回当前在途的任务数
func (s *VideoService) ActiveJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Start 为指定镜头发起视频生成（首次、重试、重新生成都走这里）
// 按项目的目标模型路由：
//   - Google Veo / Google Flow: 提交异步任务并后台轮询
//   - Custom: 返回完整提示词文本供用户手动粘贴，状态保持 idle
//   - 其他: ErrModelNotSupported，状态保持 idle
func (s *VideoService) Start(ctx context.Context, sceneID int) (VideoStart, error) {
	project := s.projects.Current()

	var prompt *models.GeneratedPrompt
	position := 0
	for i := range project.Prompts {
		if project.Prompts[i].SceneID == sceneID {
			prompt = &project.Prompts[i]
			position = i + 1
			break
		}
	}
	if prompt == nil {
		return VideoStart{}, fmt.Errorf("%w: scene %d", ErrPromptNotFound, sceneID)
	}

	switch project.TargetModel {
	case ModelCustom:
		return VideoStart{Clipboard: FullPromptText(*prompt, position), Project: project}, nil
	case ModelVeo, ModelFlow:
		// 继续提交任务
	default:
		return VideoStart{}, fmt.Errorf("%w: %s", ErrModelNotSupported, project.TargetModel)
	}

	s.mu.Lock()
	if _, running := s.active[sceneID]; running {
		s.mu.Unlock()
		return VideoStart{}, fmt.Errorf("%w: scene %d", ErrVideoJobRunning, sceneID)
	}
	jobID := uuid.NewString()
	s.active[sceneID] = jobID
	s.mu.Unlock()

	updated, err := s.projects.SetVideoState(sceneID, models.VideoGenerating, "")
	if err != nil {
		s.finishJob(sceneID)
		return VideoStart{}, err
	}
	utils.VideoJobsActive.Inc()
	s.notify(VideoStatusEvent{SceneID: sceneID, JobID: jobID, Status: models.VideoGenerating})

	job, err := s.genai.StartVideoJob(ctx, llm.VideoRequest{
		Prompt:      FullPromptText(*prompt, position),
		AspectRatio: project.AspectRatio,
	})
	if err != nil {
		s.failJob(sceneID, jobID, err)
		return VideoStart{}, fmt.Errorf("提交视频任务失败: %w", err)
	}

	go s.pollLoop(sceneID, jobID, job)

	return VideoStart{Started: true, JobID: jobID, Project: updated}, nil
}

// pollLoop 以固定间隔轮询直到任务完成或失败，没有超时上限
func (s *VideoService) pollLoop(sceneID int, jobID string, job *llm.VideoJob) {
	for {
		<-s.tick(videoPollInterval)

		polled, err := s.genai.PollVideoJob(context.Background(), job)
		if err != nil {
			s.failJob(sceneID, jobID, err)
			return
		}
		// 远端可能在 done 置位前就带回错误
		if polled.ErrMessage != "" {
			s.failJob(sceneID, jobID, errors.New(polled.ErrMessage))
			return
		}
		if !polled.Done {
			job = polled
			continue
		}

		if _, err := s.projects.SetVideoState(sceneID, models.VideoCompleted, polled.VideoURI); err != nil {
			utils.GetLogger().Errorf("记录视频完成状态失败: %v", err)
		}
		s.finishJob(sceneID)
		utils.VideoJobsActive.Dec()
		s.notify(VideoStatusEvent{
			SceneID:  sceneID,
			JobID:    jobID,
			Status:   models.VideoCompleted,
			VideoURL: polled.VideoURI,
		})
		return
	}
}

func (s *VideoService) failJob(sceneID int, jobID string, cause error) {
	utils.GetLogger().Warnf("镜头 %d 视频任务失败: %v", sceneID, cause)
	if _, err := s.projects.SetVideoState(sceneID, models.VideoFailed, ""); err != nil {
		utils.GetLogger().Errorf("记录视频失败状态失败: %v", err)
	}
	s.finishJob(sceneID)
	utils.VideoJobsActive.Dec()
	utils.GenerationFailures.WithLabelValues("video").Inc()
	s.notify(VideoStatusEvent{
		SceneID: sceneID,
		JobID:   jobID,
		Status:  models.VideoFailed,
		Error:   cause.Error(),
	})
}

func (s *VideoService) finishJob(sceneID int) {
	s.mu.Lock()
	delete(s.active, sceneID)
	s.mu.Unlock()
}
