// internal/services/prompt_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/CineScript/CineScriptStudio/internal/models"
)

var ErrScenesEmpty = errors.New("no scenes to generate prompts for")

// PromptService 提示词步骤：整体生成、单条维护与导出
type PromptService struct {
	projects *ProjectService
	genai    *GenAIService
	group    singleflight.Group
}

// NewPromptService 创建提示词服务
func NewPromptService(projects *ProjectService, genai *GenAIService) *PromptService {
	return &PromptService{projects: projects, genai: genai}
}

// Generate 基于完整项目上下文重新合成全部提示词（整体替换）
// 替换后按 sceneId 升序排列，视频状态一律回到 idle
func (s *PromptService) Generate(ctx context.Context) (models.Project, error) {
	project := s.projects.Current()
	if len(project.Scenes) == 0 {
		return models.Project{}, ErrScenesEmpty
	}
	if project.SelectedStyle == nil {
		return models.Project{}, ErrStyleNotSelected
	}

	result, err, _ := s.group.Do("prompts-generate", func() (interface{}, error) {
		prompts, err := s.genai.GenerateImagePrompts(ctx, project)
		if err != nil {
			return nil, err
		}
		updated, err := s.projects.ReplacePrompts(prompts)
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

// UpdateText 修改单条提示词文本
func (s *PromptService) UpdateText(sceneID int, text string) (models.Project, error) {
	return s.projects.UpdatePromptText(sceneID, text)
}

// Delete 删除单条提示词
func (s *PromptService) Delete(sceneID int) (models.Project, error) {
	return s.projects.DeletePrompt(sceneID)
}

// FullPromptText 拼出提交给视频后端的完整提示词
// 格式固定为 "<technicalSpecs> [<n>]_ <promptText>"
// n 是该条在排序后列表中的序号（1 起始），不是 sceneId：
// 删除中间条目后编号保持连续
func FullPromptText(p models.GeneratedPrompt, position int) string {
	return strings.TrimSpace(fmt.Sprintf("%s [%d]_ %s", p.TechnicalSpecs, position, p.PromptText))
}

// ExportAll 把全部提示词拼成可复制的纯文本，按列表位置编号
func (s *PromptService) ExportAll() string {
	project := s.projects.Current()
	lines := make([]string, 0, len(project.Prompts))
	for i, p := range project.Prompts {
		lines = append(lines, fmt.Sprintf("[%d]_ %s", i+1, p.PromptText))
	}
	return strings.Join(lines, "\n\n")
}
