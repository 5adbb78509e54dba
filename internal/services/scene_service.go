// internal/services/scene_service.go
package services

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/CineScript/CineScriptStudio/internal/models"
)

// SceneService 分镜步骤：把剧本拆成定长的镜头序列
type SceneService struct {
	projects *ProjectService
	genai    *GenAIService
	group    singleflight.Group
}

// NewSceneService 创建分镜服务
func NewSceneService(projects *ProjectService, genai *GenAIService) *SceneService {
	return &SceneService{projects: projects, genai: genai}
}

// Generate 重新生成完整的分镜列表（整体替换）
// 无论生成器返回什么 id，都按数组位置重新编号为 1..n
// 已有提示词不做级联清理，孤儿条目留给用户处置
func (s *SceneService) Generate(ctx context.Context) (models.Project, error) {
	project := s.projects.Current()
	if project.RawScript == "" {
		return models.Project{}, ErrScriptEmpty
	}

	result, err, _ := s.group.Do("scenes-generate", func() (interface{}, error) {
		scenes, err := s.genai.GenerateSceneBreakdown(ctx, project.RawScript, project.TargetDuration, project.TargetSceneCount)
		if err != nil {
			return nil, err
		}
		updated, err := s.projects.ReplaceScenes(scenes)
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
	if err != nil {
		return models.Project{}, err
	}
	updated, _ := result.(models.Project)
	return updated, nil
}
