// internal/services/set_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/CineScript/CineScriptStudio/internal/models"
)

// SetService 布景步骤：AI 生成、手动增删、排序与预览图
type SetService struct {
	projects *ProjectService
	genai    *GenAIService
	group    singleflight.Group

	now func() time.Time
}

// NewSetService 创建布景服务
func NewSetService(projects *ProjectService, genai *GenAIService) *SetService {
	return &SetService{projects: projects, genai: genai, now: time.Now}
}

// Generate 从剧本识别关键地点并追加到现有布景列表
func (s *SetService) Generate(ctx context.Context) (models.Project, error) {
	project := s.projects.Current()
	if project.RawScript == "" {
		return models.Project{}, ErrScriptEmpty
	}

	result, err, _ := s.group.Do("sets-generate", func() (interface{}, error) {
		sets, err := s.genai.GenerateSetsDetails(ctx, project.RawScript)
		if err != nil {
			return nil, err
		}
		updated, err := s.projects.AppendSets(sets)
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

// Add 手动添加一个布景
func (s *SetService) Add(name, description, visualVibe string) (models.Project, error) {
	if name == "" {
		return models.Project{}, fmt.Errorf("布景名不能为空")
	}
	set := models.StorySet{
		ID:          fmt.Sprintf("set_%d", s.now().UnixMilli()),
		Name:        name,
		Description: description,
		VisualVibe:  visualVibe,
	}
	return s.projects.AppendSets([]models.StorySet{set})
}

// Remove 删除一个布景
func (s *SetService) Remove(id string) (models.Project, error) {
	return s.projects.RemoveSet(id)
}

// Move 调整布景顺序，direction 为 -1 上移 / +1 下移
func (s *SetService) Move(id string, direction int) (models.Project, error) {
	if direction != -1 && direction != 1 {
		return models.Project{}, fmt.Errorf("无效的移动方向: %d", direction)
	}
	return s.projects.MoveSet(id, direction)
}

// GeneratePreview 为单个布景生成风格化概念图
func (s *SetService) GeneratePreview(ctx context.Context, id string) (models.Project, error) {
	project := s.projects.Current()
	if project.SelectedStyle == nil {
		return models.Project{}, ErrStyleNotSelected
	}

	var target *models.StorySet
	for i := range project.Sets {
		if project.Sets[i].ID == id {
			target = &project.Sets[i]
			break
		}
	}
	if target == nil {
		return models.Project{}, fmt.Errorf("%w: %s", ErrSetNotFound, id)
	}

	result, err, _ := s.group.Do("set-preview-"+id, func() (interface{}, error) {
		dataURI, err := s.genai.GenerateSetPreview(ctx, *target, *project.SelectedStyle)
		if err != nil {
			return nil, err
		}
		if dataURI == "" {
			return s.projects.Current(), nil
		}
		updated, err := s.projects.SetSetImage(id, dataURI)
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
