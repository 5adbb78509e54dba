// internal/services/genai_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/CineScript/CineScriptStudio/internal/config"
	"github.com/CineScript/CineScriptStudio/internal/llm"
	// 提供者通过 init 注册进 llm 工厂表
	_ "github.com/CineScript/CineScriptStudio/internal/llm/providers/google"
	"github.com/CineScript/CineScriptStudio/internal/models"
	"github.com/CineScript/CineScriptStudio/internal/utils"
)

var ErrGenAINotReady = errors.New("generative service not ready")

// 文本类任务与推理类任务的模型分工，沿用后端的推荐配置
const (
	extractionModel = "gemini-3-flash-preview"
	reasoningModel  = "gemini-3-pro-preview"
)

// ScriptAnalysis 剧本分析的结构化结果
type ScriptAnalysis struct {
	Tone       string   `json:"tone"`
	Characters []string `json:"characters"`
	Locations  []string `json:"locations"`
}

// GenAIService 封装对生成式后端的所有调用
// 本地代码只负责组装请求载荷与解析响应，不复刻模型的推理
type GenAIService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerName  string
	isReady       bool
	readyState    string

	// 测试注入点，默认 time.Now
	now func() time.Time
}

// NewGenAIService 从当前配置创建生成服务
func NewGenAIService() (*GenAIService, error) {
	service := &GenAIService{now: time.Now, readyState: "Uninitialized"}

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}

	if cfg.GenProvider == "" || cfg.GenConfig == nil || cfg.GenConfig["api_key"] == "" {
		service.readyState = "API key not configured"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.GenProvider, cfg.GenConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service, nil // 返回未就绪服务而不是错误
	}

	service.provider = provider
	service.providerName = cfg.GenProvider
	service.isReady = true
	service.readyState = "Ready"
	return service, nil
}

// NewEmptyGenAIService 创建一个空服务实例作为后备方案
func NewEmptyGenAIService() *GenAIService {
	return &GenAIService{
		now:          time.Now,
		providerName: "empty",
		readyState:   "Standby Service Mode – Please configure the API key in settings",
	}
}

// NewGenAIServiceWithProvider 使用指定提供者创建服务（测试用）
func NewGenAIServiceWithProvider(provider llm.Provider) *GenAIService {
	return &GenAIService{
		now:        time.Now,
		provider:   provider,
		isReady:    provider != nil,
		readyState: "Ready",
	}
}

// IsReady 返回服务是否已就绪
func (s *GenAIService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

// GetReadyState 返回服务就绪状态描述
func (s *GenAIService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// UpdateProvider 切换/重建底层提供者（密钥更新后调用）
func (s *GenAIService) UpdateProvider(providerName string, providerConfig map[string]string) error {
	provider, err := llm.GetProvider(providerName, providerConfig)
	if err != nil {
		return fmt.Errorf("初始化提供者失败: %w", err)
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()
	s.provider = provider
	s.providerName = providerName
	s.isReady = true
	s.readyState = "Ready"
	return nil
}

func (s *GenAIService) currentProvider() (llm.Provider, error) {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	if !s.isReady || s.provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrGenAINotReady, s.readyState)
	}
	return s.provider, nil
}

// CreateStructuredCompletion 执行一次结构化输出调用并解析进 outputSchema
func (s *GenAIService) CreateStructuredCompletion(ctx context.Context, prompt, systemPrompt, model string, outputSchema interface{}) error {
	provider, err := s.currentProvider()
	if err != nil {
		return err
	}

	structuredSystemPrompt := systemPrompt
	if structuredSystemPrompt != "" {
		structuredSystemPrompt += "\n\n"
	}
	structuredSystemPrompt += "Return your response in valid JSON format, following the provided output schema, without adding explanations or preambles."

	resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: structuredSystemPrompt,
		Temperature:  0.3,
		Model:        model,
		JSONMode:     true,
	})
	if err != nil {
		return err
	}

	text := cleanJSONString(resp.Text)
	if err := json.Unmarshal([]byte(text), outputSchema); err != nil {
		return fmt.Errorf("failed to parse AI response into structured data: %w\nAI return: %s", err, text)
	}
	return nil
}

// cleanJSONString 剥离模型偶尔包裹的 Markdown 代码栅栏
func cleanJSONString(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// AnalyzeScript 识别剧本的基调、关键角色名与关键地点名
// 结果整体覆盖旧值，没有合并语义
func (s *GenAIService) AnalyzeScript(ctx context.Context, script string) (*ScriptAnalysis, error) {
	start := s.now()
	utils.GenerationRequests.WithLabelValues("analyze").Inc()

	prompt := `Analyze the following movie script or story text. Identify the overall tone/genre, list the names of the key characters, and list the key locations/sets where the story takes place.

Return a JSON object: {"tone": string, "characters": [string], "locations": [string]}

SCRIPT:
` + script

	var result ScriptAnalysis
	err := s.CreateStructuredCompletion(ctx, prompt, "", extractionModel, &result)
	utils.GenerationDuration.WithLabelValues("analyze").Observe(s.now().Sub(start).Seconds())
	if err != nil {
		utils.GenerationFailures.WithLabelValues("analyze").Inc()
		return nil, fmt.Errorf("剧本分析失败: %w", err)
	}
	return &result, nil
}

// GenerateCastDetails 从剧本生成主要角色档案
// 返回全新条目（带生成 id、无预览图），由调用方追加进现有阵容
func (s *GenAIService) GenerateCastDetails(ctx context.Context, script string) ([]models.Character, error) {
	utils.GenerationRequests.WithLabelValues("cast").Inc()

	prompt := `Analyze the script and generate detailed character profiles for the main cast.
For each character, determine their role, visual appearance, and personality based on the text.

Return a JSON array of objects:
[{"name": string, "role": "Hero"|"Villain"|"Supporting"|"Creature", "appearance": string, "personality": string, "description": string}]

SCRIPT:
` + script

	var raw []struct {
		Name        string `json:"name"`
		Role        string `json:"role"`
		Appearance  string `json:"appearance"`
		Personality string `json:"personality"`
		Description string `json:"description"`
	}
	if err := s.CreateStructuredCompletion(ctx, prompt, "", extractionModel, &raw); err != nil {
		utils.GenerationFailures.WithLabelValues("cast").Inc()
		return nil, fmt.Errorf("自动生成角色失败: %w", err)
	}

	stamp := s.now().UnixMilli()
	cast := make([]models.Character, 0, len(raw))
	for i, c := range raw {
		character := models.Character{
			ID:          fmt.Sprintf("auto_char_%d_%d", stamp, i),
			Name:        c.Name,
			Role:        c.Role,
			Appearance:  c.Appearance,
			Personality: c.Personality,
			Description: c.Description,
		}
		if character.Role == "" {
			character.Role = models.RoleSupporting
		}
		if character.Appearance == "" {
			character.Appearance = "Standard"
		}
		if character.Personality == "" {
			character.Personality = "Neutral"
		}
		cast = append(cast, character)
	}
	return cast, nil
}

// GenerateSetsDetails 从剧本生成关键地点（布景）列表
func (s *GenAIService) GenerateSetsDetails(ctx context.Context, script string) ([]models.StorySet, error) {
	utils.GenerationRequests.WithLabelValues("sets").Inc()

	prompt := `Analyze the script and identify the key locations (sets) where the story takes place.
For each location, provide a cinematic visual description and the overall mood/vibe.

Return a JSON array of objects:
[{"name": string, "description": string, "visualVibe": string}]

SCRIPT:
` + script

	var raw []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		VisualVibe  string `json:"visualVibe"`
	}
	if err := s.CreateStructuredCompletion(ctx, prompt, "", extractionModel, &raw); err != nil {
		utils.GenerationFailures.WithLabelValues("sets").Inc()
		return nil, fmt.Errorf("自动生成布景失败: %w", err)
	}

	stamp := s.now().UnixMilli()
	sets := make([]models.StorySet, 0, len(raw))
	for i, item := range raw {
		set := models.StorySet{
			ID:          fmt.Sprintf("auto_set_%d_%d", stamp, i),
			Name:        item.Name,
			Description: item.Description,
			VisualVibe:  item.VisualVibe,
		}
		if set.Description == "" {
			set.Description = "Standard cinematic environment"
		}
		if set.VisualVibe == "" {
			set.VisualVibe = "Neutral"
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// GenerateSceneBreakdown 把剧本拆分为约 targetSceneCount 个镜头
// 返回值里的 id 不可信，调用方必须按数组位置重新编号
func (s *GenAIService) GenerateSceneBreakdown(ctx context.Context, script, targetDuration string, targetSceneCount int) ([]models.Scene, error) {
	utils.GenerationRequests.WithLabelValues("scenes").Inc()

	prompt := fmt.Sprintf(`Break down the following story into a list of cinematic scenes.

CRITICAL CONSTRAINTS:
1. The total video duration target is %s.
2. You MUST generate approximately %d distinct scenes to match the desired pacing.
3. Ensure a logical flow where the story is fully told within this scene count.

For each scene, provide:
- location: Where it happens.
- action: What happens (visuals).
- characters: List of names involved.
- duration: Estimated duration (e.g., "5s", "10s"). The sum should equal roughly %s.

Return a JSON array of objects:
[{"id": int, "location": string, "action": string, "characters": [string], "duration": string, "visualNotes": string}]

SCRIPT:
%s`, targetDuration, targetSceneCount, targetDuration, script)

	var raw []struct {
		ID          int      `json:"id"`
		Location    string   `json:"location"`
		Action      string   `json:"action"`
		Characters  []string `json:"characters"`
		Duration    string   `json:"duration"`
		VisualNotes string   `json:"visualNotes"`
	}
	if err := s.CreateStructuredCompletion(ctx, prompt, "", reasoningModel, &raw); err != nil {
		utils.GenerationFailures.WithLabelValues("scenes").Inc()
		return nil, fmt.Errorf("分镜生成失败: %w", err)
	}

	scenes := make([]models.Scene, 0, len(raw))
	for _, sc := range raw {
		scenes = append(scenes, models.Scene{
			ID:          sc.ID,
			Location:    sc.Location,
			Action:      sc.Action,
			Characters:  sc.Characters,
			Duration:    sc.Duration,
			VisualNotes: sc.VisualNotes,
		})
	}
	return scenes, nil
}

// GenerateImagePrompts 基于完整项目上下文为每个镜头合成提示词
// 风格一致性是对远端模型的语义约束，本地不做返回文本校验
func (s *GenAIService) GenerateImagePrompts(ctx context.Context, project models.Project) ([]models.GeneratedPrompt, error) {
	utils.GenerationRequests.WithLabelValues("prompts").Inc()

	type castContext struct {
		Name       string `json:"name"`
		Appearance string `json:"appearance"`
	}
	type setContext struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Vibe        string `json:"vibe"`
	}

	castCtx := make([]castContext, 0, len(project.Cast))
	for _, c := range project.Cast {
		castCtx = append(castCtx, castContext{Name: c.Name, Appearance: c.Appearance})
	}
	setCtx := make([]setContext, 0, len(project.Sets))
	for _, set := range project.Sets {
		setCtx = append(setCtx, setContext{Name: set.Name, Description: set.Description, Vibe: set.VisualVibe})
	}

	styleJSON, _ := json.Marshal(project.SelectedStyle)
	castJSON, _ := json.Marshal(castCtx)
	setsJSON, _ := json.Marshal(setCtx)
	scenesJSON, _ := json.Marshal(project.Scenes)

	prompt := fmt.Sprintf(`You are an expert AI Video Prompt Engineer.
Based on the provided Style, Character Profiles, Set/Location Details, and Scene Breakdown, generate a precise image generation prompt for each scene.

CONSISTENCY LOCK:
The "Style" definition provided below is the absolute law. You must explicitly weave the specific keywords, render style, lighting, and color palette from the [Style Context] into EVERY SINGLE generated prompt. Do not deviate. The visual aesthetic must be perfectly consistent across all shots.

FORMULA: [STYLE SPECS] + [SCENE ACTION] + [SET/LOCATION VISUALS] + [CHARACTER VISUALS] + [LIGHTING & CAMERA].

Rules:
1. Match the scene 'location' to a 'set' in the context if possible, and use that set's description.
2. Match scene 'characters' to 'character' profiles.
3. Ensure consistent visual language across all prompts.

Style Context: %s
Character Context: %s
Set/Location Context: %s
Scenes: %s

Return a JSON array of objects:
[{"sceneId": int, "promptText": string, "technicalSpecs": string, "negativePrompt": string}]`,
		styleJSON, castJSON, setsJSON, scenesJSON)

	var raw []struct {
		SceneID        int    `json:"sceneId"`
		PromptText     string `json:"promptText"`
		TechnicalSpecs string `json:"technicalSpecs"`
		NegativePrompt string `json:"negativePrompt"`
	}
	if err := s.CreateStructuredCompletion(ctx, prompt, "", reasoningModel, &raw); err != nil {
		utils.GenerationFailures.WithLabelValues("prompts").Inc()
		return nil, fmt.Errorf("提示词生成失败: %w", err)
	}

	prompts := make([]models.GeneratedPrompt, 0, len(raw))
	for _, p := range raw {
		prompts = append(prompts, models.GeneratedPrompt{
			SceneID:        p.SceneID,
			PromptText:     p.PromptText,
			TechnicalSpecs: p.TechnicalSpecs,
			NegativePrompt: p.NegativePrompt,
		})
	}
	return prompts, nil
}

// GenerateCharacterPreview 为单个角色生成风格化的设计图
// 返回空串表示模型未返回图像
func (s *GenAIService) GenerateCharacterPreview(ctx context.Context, char models.Character, style models.VisualStyle) (string, error) {
	provider, err := s.currentProvider()
	if err != nil {
		return "", err
	}
	imageProvider, ok := provider.(llm.ImageProvider)
	if !ok {
		return "", llm.ErrNoImageSupport
	}

	utils.GenerationRequests.WithLabelValues("preview").Inc()

	prompt := fmt.Sprintf(`Character Design Portrait.
Name: %s.
Role: %s.
Appearance: %s.
Personality traits visible: %s.
Style: %s (%s, %s, %s).
High quality, detailed, centered portrait.`,
		char.Name, char.Role, char.Appearance, char.Personality,
		style.Name, style.Rules.Render, style.Rules.Lighting, style.Rules.Color)

	resp, err := imageProvider.GenerateImage(ctx, llm.ImageRequest{Prompt: prompt})
	if err != nil {
		utils.GenerationFailures.WithLabelValues("preview").Inc()
		return "", fmt.Errorf("角色预览图生成失败: %w", err)
	}
	return resp.DataURI, nil
}

// GenerateSetPreview 为单个布景生成风格化的概念图
func (s *GenAIService) GenerateSetPreview(ctx context.Context, set models.StorySet, style models.VisualStyle) (string, error) {
	provider, err := s.currentProvider()
	if err != nil {
		return "", err
	}
	imageProvider, ok := provider.(llm.ImageProvider)
	if !ok {
		return "", llm.ErrNoImageSupport
	}

	utils.GenerationRequests.WithLabelValues("preview").Inc()

	prompt := fmt.Sprintf(`Cinematic Environment Design.
Location: %s.
Description: %s.
Vibe/Mood: %s.
Style: %s (%s, %s, %s, %s).
High quality, detailed, wide shot.`,
		set.Name, set.Description, set.VisualVibe,
		style.Name, style.Rules.Render, style.Rules.Lighting, style.Rules.Color, style.Rules.Camera)

	resp, err := imageProvider.GenerateImage(ctx, llm.ImageRequest{Prompt: prompt})
	if err != nil {
		utils.GenerationFailures.WithLabelValues("preview").Inc()
		return "", fmt.Errorf("布景预览图生成失败: %w", err)
	}
	return resp.DataURI, nil
}

// StartVideoJob 提交一个异步视频任务
func (s *GenAIService) StartVideoJob(ctx context.Context, req llm.VideoRequest) (*llm.VideoJob, error) {
	provider, err := s.currentProvider()
	if err != nil {
		return nil, err
	}
	videoProvider, ok := provider.(llm.VideoProvider)
	if !ok {
		return nil, llm.ErrNoVideoSupport
	}
	utils.GenerationRequests.WithLabelValues("video").Inc()
	return videoProvider.StartVideoJob(ctx, req)
}

// PollVideoJob 查询一次异步视频任务进度
func (s *GenAIService) PollVideoJob(ctx context.Context, job *llm.VideoJob) (*llm.VideoJob, error) {
	provider, err := s.currentProvider()
	if err != nil {
		return nil, err
	}
	videoProvider, ok := provider.(llm.VideoProvider)
	if !ok {
		return nil, llm.ErrNoVideoSupport
	}
	return videoProvider.PollVideoJob(ctx, job)
}
