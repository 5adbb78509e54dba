// internal/services/pipeline_service.go
package services

import (
	"sync"
)

// Step 向导流水线中的一个步骤
type Step int

const (
	StepScript Step = iota + 1
	StepStyle
	StepCast
	StepSets
	StepScenes
	StepPrompts
)

// String 返回步骤的展示名
func (s Step) String() string {
	switch s {
	case StepScript:
		return "Script"
	case StepStyle:
		return "Style"
	case StepCast:
		return "Cast"
	case StepSets:
		return "Sets"
	case StepScenes:
		return "Scenes"
	case StepPrompts:
		return "Prompts"
	default:
		return "Unknown"
	}
}

// PipelineService 维护向导当前所处的步骤
// 前进/后退只做边界裁剪，步骤完成度校验由各步骤的视图层负责
type PipelineService struct {
	mu       sync.RWMutex
	current  Step
	projects *ProjectService
}

// NewPipelineService 创建流水线控制器，初始停在剧本步骤
func NewPipelineService(projects *ProjectService) *PipelineService {
	return &PipelineService{current: StepScript, projects: projects}
}

// Current 返回当前步骤
func (s *PipelineService) Current() Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Advance 前进一步，已在末尾时保持不动
func (s *PipelineService) Advance() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < StepPrompts {
		s.current++
	}
	return s.current
}

// Retreat 后退一步，已在起点时保持不动
func (s *PipelineService) Retreat() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current > StepScript {
		s.current--
	}
	return s.current
}

// Reset 重置整个项目并回到剧本步骤
// 项目重置失败时步骤位置不变
func (s *PipelineService) Reset(confirm bool) error {
	if _, err := s.projects.Reset(confirm); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = StepScript
	s.mu.Unlock()
	return nil
}

// Generation 返回项目的重置代次
func (s *PipelineService) Generation() int {
	return s.projects.ResetGeneration()
}
