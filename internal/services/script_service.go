// internal/services/script_service.go
package services

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/CineScript/CineScriptStudio/internal/models"
)

var ErrScriptEmpty = errors.New("script is empty")

// ScriptService 剧本步骤：保存原始文本并触发分析
type ScriptService struct {
	projects *ProjectService
	genai    *GenAIService
	group    singleflight.Group
}

// NewScriptService 创建剧本服务
func NewScriptService(projects *ProjectService, genai *GenAIService) *ScriptService {
	return &ScriptService{projects: projects, genai: genai}
}

// Analyze 分析剧本并把结果写回项目
// 同一时刻重复触发的分析共享一次远端调用
// 远端失败时项目状态保持不变
func (s *ScriptService) Analyze(ctx context.Context, script string) (models.Project, error) {
	if script == "" {
		return models.Project{}, ErrScriptEmpty
	}

	result, err, _ := s.group.Do("script-analyze", func() (interface{}, error) {
		analysis, err := s.genai.AnalyzeScript(ctx, script)
		if err != nil {
			return nil, err
		}
		project, err := s.projects.Apply(models.ProjectPatch{
			RawScript:              &script,
			Tone:                   &analysis.Tone,
			DetectedCharacterNames: &analysis.Characters,
			DetectedLocations:      &analysis.Locations,
		})
		if err != nil {
			return nil, err
		}
		return project, nil
	})
	if err != nil {
		return models.Project{}, err
	}
	project, _ := result.(models.Project)
	return project, nil
}
