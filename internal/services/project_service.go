// internal/services/project_service.go
package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/CineScript/CineScriptStudio/internal/models"
	"github.com/CineScript/CineScriptStudio/internal/storage"
	"github.com/CineScript/CineScriptStudio/internal/utils"
)

// 持久化条目键名，每个键对应数据目录下一个 JSON 文件
const (
	projectEntry  = "project.json"
	apiKeysEntry  = "api_keys.json"
	autosaveEntry = "autosave.json"
)

var (
	ErrResetNotConfirmed = errors.New("reset requires explicit confirmation")
	ErrCharacterNotFound = errors.New("character not found")
	ErrSetNotFound       = errors.New("set not found")
	ErrPromptNotFound    = errors.New("prompt not found")
)

// ProjectService 是项目文档的唯一属主
// 所有读写都经过内部锁，外部只拿到深拷贝
type ProjectService struct {
	mu      sync.RWMutex
	storage *storage.FileStorage
	project models.Project

	// autosave 只管密钥条目是否落盘，项目文档本身总是持久化
	autosave bool

	// 非空时密钥落盘前做 AES-GCM 加密
	secret string

	// 重置代次计数器，每次 Reset 成功 +1，供上层整体重挂载
	resetGeneration int
}

// NewProjectService 创建项目服务并从磁盘恢复状态
// 任何持久化条目缺失或损坏都不算错误，回退到默认值并记录警告
func NewProjectService(fileStorage *storage.FileStorage, secret string) (*ProjectService, error) {
	if fileStorage == nil {
		return nil, fmt.Errorf("存储服务不能为空")
	}

	s := &ProjectService{
		storage:  fileStorage,
		project:  models.DefaultProject(),
		autosave: true,
		secret:   secret,
	}

	var autosaveFlag struct {
		Enabled bool `json:"enabled"`
	}
	if fileStorage.Exists(autosaveEntry) {
		if err := fileStorage.LoadJSON(autosaveEntry, &autosaveFlag); err == nil {
			s.autosave = autosaveFlag.Enabled
		}
	}

	if fileStorage.Exists(projectEntry) {
		var loaded models.Project
		if err := fileStorage.LoadJSON(projectEntry, &loaded); err != nil {
			utils.GetLogger().Warnf("项目文件损坏，回退到默认项目: %v", err)
		} else {
			s.project = normalizeProject(loaded)
		}
	}

	if fileStorage.Exists(apiKeysEntry) {
		keys := map[string]string{}
		if err := fileStorage.LoadJSON(apiKeysEntry, &keys); err != nil {
			utils.GetLogger().Warnf("密钥文件损坏，忽略: %v", err)
		} else {
			for model, key := range keys {
				s.project.APIKeys[model] = s.decodeKey(key)
			}
		}
	}

	return s, nil
}

// encodeKey 按需加密密钥值
func (s *ProjectService) encodeKey(key string) string {
	if s.secret == "" || key == "" {
		return key
	}
	encrypted, err := utils.Encrypt(key, s.secret)
	if err != nil {
		utils.GetLogger().Warnf("密钥加密失败，按明文保存: %v", err)
		return key
	}
	return encrypted
}

// decodeKey 尝试解密，解不开的值按历史明文处理
func (s *ProjectService) decodeKey(value string) string {
	if s.secret == "" || value == "" {
		return value
	}
	decrypted, err := utils.Decrypt(value, s.secret)
	if err != nil {
		return value
	}
	return decrypted
}

// normalizeProject 补齐反序列化后可能为 nil 的集合字段
func normalizeProject(p models.Project) models.Project {
	if p.DetectedCharacterNames == nil {
		p.DetectedCharacterNames = []string{}
	}
	if p.DetectedLocations == nil {
		p.DetectedLocations = []string{}
	}
	if p.Cast == nil {
		p.Cast = []models.Character{}
	}
	if p.Sets == nil {
		p.Sets = []models.StorySet{}
	}
	if p.Scenes == nil {
		p.Scenes = []models.Scene{}
	}
	if p.Prompts == nil {
		p.Prompts = []models.GeneratedPrompt{}
	}
	if p.APIKeys == nil {
		p.APIKeys = map[string]string{}
	}
	if p.TargetModel == "" {
		p.TargetModel = models.DefaultTargetModel
	}
	if p.TargetDuration == "" {
		p.TargetDuration = models.DefaultTargetDuration
	}
	if p.TargetSceneCount == 0 {
		p.TargetSceneCount = models.DefaultTargetSceneCount
	}
	if p.AspectRatio == "" {
		p.AspectRatio = models.DefaultAspectRatio
	}
	return p
}

// Current 返回当前项目文档的深拷贝
func (s *ProjectService) Current() models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project.Clone()
}

// ResetGeneration 返回重置代次计数
func (s *ProjectService) ResetGeneration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resetGeneration
}

// Autosave 返回自动保存开关状态
func (s *ProjectService) Autosave() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autosave
}

// mutate 在锁内应用变更并同步持久化
func (s *ProjectService) mutate(fn func(p *models.Project) error) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(&s.project); err != nil {
		return models.Project{}, err
	}
	if err := s.persistLocked(); err != nil {
		return models.Project{}, err
	}
	return s.project.Clone(), nil
}

// persistLocked 在持有写锁时落盘
// 项目文档每次变更后必写；密钥条目单独存储，且只在自动保存开启时写入
func (s *ProjectService) persistLocked() error {
	doc := s.project.Clone()
	doc.APIKeys = nil // 密钥单独存储
	if err := s.storage.SaveJSON(projectEntry, doc); err != nil {
		return fmt.Errorf("保存项目失败: %w", err)
	}
	utils.ProjectSaves.Inc()

	if !s.autosave {
		return nil
	}
	keys := make(map[string]string, len(s.project.APIKeys))
	for model, key := range s.project.APIKeys {
		keys[model] = s.encodeKey(key)
	}
	if err := s.storage.SaveJSON(apiKeysEntry, keys); err != nil {
		return fmt.Errorf("保存密钥失败: %w", err)
	}
	return nil
}

// Apply 逐字段浅合并补丁：非 nil 指针整体替换对应字段
func (s *ProjectService) Apply(patch models.ProjectPatch) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		if patch.RawScript != nil {
			p.RawScript = *patch.RawScript
		}
		if patch.Tone != nil {
			p.Tone = *patch.Tone
		}
		if patch.DetectedCharacterNames != nil {
			p.DetectedCharacterNames = append([]string{}, (*patch.DetectedCharacterNames)...)
		}
		if patch.DetectedLocations != nil {
			p.DetectedLocations = append([]string{}, (*patch.DetectedLocations)...)
		}
		if patch.ClearStyle {
			p.SelectedStyle = nil
		} else if patch.Style != nil {
			styleCopy := *patch.Style
			p.SelectedStyle = &styleCopy
		}
		if patch.Cast != nil {
			p.Cast = append([]models.Character{}, (*patch.Cast)...)
		}
		if patch.Sets != nil {
			p.Sets = append([]models.StorySet{}, (*patch.Sets)...)
		}
		if patch.Scenes != nil {
			p.Scenes = append([]models.Scene{}, (*patch.Scenes)...)
		}
		if patch.Prompts != nil {
			p.Prompts = append([]models.GeneratedPrompt{}, (*patch.Prompts)...)
		}
		if patch.TargetModel != nil {
			p.TargetModel = *patch.TargetModel
		}
		if patch.TargetDuration != nil {
			p.TargetDuration = *patch.TargetDuration
		}
		if patch.TargetSceneCount != nil {
			p.TargetSceneCount = *patch.TargetSceneCount
		}
		if patch.AspectRatio != nil {
			p.AspectRatio = *patch.AspectRatio
		}
		if patch.APIKeys != nil {
			p.APIKeys = map[string]string{}
			for model, key := range *patch.APIKeys {
				p.APIKeys[model] = key
			}
		}
		return nil
	})
}

// AppendCast 追加角色，不影响已有阵容
func (s *ProjectService) AppendCast(cast []models.Character) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		p.Cast = append(p.Cast, cast...)
		return nil
	})
}

// RemoveCharacter 按 id 移除角色
func (s *ProjectService) RemoveCharacter(id string) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		for i, c := range p.Cast {
			if c.ID == id {
				p.Cast = append(p.Cast[:i], p.Cast[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
	})
}

// SetCharacterImage 只覆盖指定角色的预览图字段
func (s *ProjectService) SetCharacterImage(id, imageURL string) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		for i := range p.Cast {
			if p.Cast[i].ID == id {
				p.Cast[i].ImageURL = imageURL
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
	})
}

// AppendSets 追加布景，不影响已有列表
func (s *ProjectService) AppendSets(sets []models.StorySet) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		p.Sets = append(p.Sets, sets...)
		return nil
	})
}

// RemoveSet 按 id 移除布景
func (s *ProjectService) RemoveSet(id string) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		for i, set := range p.Sets {
			if set.ID == id {
				p.Sets = append(p.Sets[:i], p.Sets[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrSetNotFound, id)
	})
}

// SetSetImage 只覆盖指定布景的预览图字段
func (s *ProjectService) SetSetImage(id, imageURL string) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		for i := range p.Sets {
			if p.Sets[i].ID == id {
				p.Sets[i].ImageURL = imageURL
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrSetNotFound, id)
	})
}

// MoveSet 把指定布景沿 direction（-1 上移 / +1 下移）交换一位
// 越界移动是无操作而不是错误
func (s *ProjectService) MoveSet(id string, direction int) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		for i, set := range p.Sets {
			if set.ID != id {
				continue
			}
			j := i + direction
			if j < 0 || j >= len(p.Sets) {
				return nil
			}
			p.Sets[i], p.Sets[j] = p.Sets[j], p.Sets[i]
			return nil
		}
		return fmt.Errorf("%w: %s", ErrSetNotFound, id)
	})
}

// ReplaceScenes 整体替换分镜列表，并按数组位置重新编号为 1..n
// 生成器返回的 id 一律不可信
func (s *ProjectService) ReplaceScenes(scenes []models.Scene) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		renumbered := make([]models.Scene, len(scenes))
		for i, scene := range scenes {
			renumbered[i] = scene
			renumbered[i].ID = i + 1
		}
		p.Scenes = renumbered
		return nil
	})
}

// ReplacePrompts 整体替换提示词列表
// 按 sceneId 升序排序，视频状态强制回到 idle，清空历史视频地址
func (s *ProjectService) ReplacePrompts(prompts []models.GeneratedPrompt) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		replaced := make([]models.GeneratedPrompt, len(prompts))
		for i, prompt := range prompts {
			replaced[i] = prompt
			replaced[i].VideoStatus = models.VideoIdle
			replaced[i].VideoURL = ""
		}
		sort.SliceStable(replaced, func(i, j int) bool {
			return replaced[i].SceneID < replaced[j].SceneID
		})
		p.Prompts = replaced
		return nil
	})
}

// UpdatePromptText 修改单条提示词文本，不触碰其视频状态
func (s *ProjectService) UpdatePromptText(sceneID int, text string) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		for i := range p.Prompts {
			if p.Prompts[i].SceneID == sceneID {
				p.Prompts[i].PromptText = text
				return nil
			}
		}
		return fmt.Errorf("%w: scene %d", ErrPromptNotFound, sceneID)
	})
}

// DeletePrompt 删除单条提示词，对应场景不受影响
func (s *ProjectService) DeletePrompt(sceneID int) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		for i, prompt := range p.Prompts {
			if prompt.SceneID == sceneID {
				p.Prompts = append(p.Prompts[:i], p.Prompts[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: scene %d", ErrPromptNotFound, sceneID)
	})
}

// SetVideoState 更新单条提示词的视频状态机
// 进入 generating 时清空旧的视频地址
func (s *ProjectService) SetVideoState(sceneID int, status models.VideoStatus, videoURL string) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		for i := range p.Prompts {
			if p.Prompts[i].SceneID != sceneID {
				continue
			}
			p.Prompts[i].VideoStatus = status
			switch status {
			case models.VideoGenerating:
				p.Prompts[i].VideoURL = ""
			case models.VideoCompleted:
				p.Prompts[i].VideoURL = videoURL
			}
			return nil
		}
		return fmt.Errorf("%w: scene %d", ErrPromptNotFound, sceneID)
	})
}

// SetAPIKey 设置某个目标模型的密钥并立即落盘
func (s *ProjectService) SetAPIKey(model, key string) (models.Project, error) {
	return s.mutate(func(p *models.Project) error {
		p.APIKeys[model] = key
		return nil
	})
}

// SetAutosave 切换密钥自动保存
// 关闭时删除已持久化的密钥条目（内存态保留），这是预期的锁出行为；
// 项目文档的持久化不受此开关影响
func (s *ProjectService) SetAutosave(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.autosave = enabled
	flag := struct {
		Enabled bool `json:"enabled"`
	}{Enabled: enabled}
	if err := s.storage.SaveJSON(autosaveEntry, flag); err != nil {
		return fmt.Errorf("保存自动保存设置失败: %w", err)
	}

	if !enabled {
		if err := s.storage.Delete(apiKeysEntry); err != nil {
			return err
		}
		return nil
	}
	return s.persistLocked()
}

// Reset 用默认文档替换整个项目，保留密钥表
// confirm 为 false 时拒绝执行
func (s *ProjectService) Reset(confirm bool) (models.Project, error) {
	if !confirm {
		return models.Project{}, ErrResetNotConfirmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	preserved := s.project.APIKeys
	s.project = models.DefaultProject()
	for model, key := range preserved {
		s.project.APIKeys[model] = key
	}
	s.resetGeneration++

	if err := s.persistLocked(); err != nil {
		return models.Project{}, err
	}
	return s.project.Clone(), nil
}
