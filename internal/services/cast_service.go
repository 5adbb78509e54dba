// internal/services/cast_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/CineScript/CineScriptStudio/internal/models"
)

var ErrStyleNotSelected = errors.New("no visual style selected")

// CastService 角色步骤：AI 生成、手动增删与预览图
type CastService struct {
	projects *ProjectService
	genai    *GenAIService
	group    singleflight.Group

	now func() time.Time
}

// NewCastService 创建角色服务
func NewCastService(projects *ProjectService, genai *GenAIService) *CastService {
	return &CastService{projects: projects, genai: genai, now: time.Now}
}

// Generate 从剧本生成角色并追加到现有阵容
// 追加而非替换：重复生成会累积条目，由用户自行删减
func (s *CastService) Generate(ctx context.Context) (models.Project, error) {
	project := s.projects.Current()
	if project.RawScript == "" {
		return models.Project{}, ErrScriptEmpty
	}

	result, err, _ := s.group.Do("cast-generate", func() (interface{}, error) {
		cast, err := s.genai.GenerateCastDetails(ctx, project.RawScript)
		if err != nil {
			return nil, err
		}
		updated, err := s.projects.AppendCast(cast)
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

// Add 手动添加一个角色
func (s *CastService) Add(name, role, appearance, personality, description string) (models.Project, error) {
	if name == "" {
		return models.Project{}, fmt.Errorf("角色名不能为空")
	}
	if role == "" {
		role = models.RoleSupporting
	}
	character := models.Character{
		ID:          fmt.Sprintf("char_%d", s.now().UnixMilli()),
		Name:        name,
		Role:        role,
		Appearance:  appearance,
		Personality: personality,
		Description: description,
	}
	return s.projects.AppendCast([]models.Character{character})
}

// Remove 删除一个角色
func (s *CastService) Remove(id string) (models.Project, error) {
	return s.projects.RemoveCharacter(id)
}

// GeneratePreview 为单个角色生成风格化预览图
// 未选风格时直接拒绝；失败时不触碰已有图片
func (s *CastService) GeneratePreview(ctx context.Context, id string) (models.Project, error) {
	project := s.projects.Current()
	if project.SelectedStyle == nil {
		return models.Project{}, ErrStyleNotSelected
	}

	var target *models.Character
	for i := range project.Cast {
		if project.Cast[i].ID == id {
			target = &project.Cast[i]
			break
		}
	}
	if target == nil {
		return models.Project{}, fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
	}

	result, err, _ := s.group.Do("cast-preview-"+id, func() (interface{}, error) {
		dataURI, err := s.genai.GenerateCharacterPreview(ctx, *target, *project.SelectedStyle)
		if err != nil {
			return nil, err
		}
		if dataURI == "" {
			// 模型未返回图像，保持现状
			return s.projects.Current(), nil
		}
		updated, err := s.projects.SetCharacterImage(id, dataURI)
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
