// internal/api/handlers.go
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CineScript/CineScriptStudio/internal/config"
	"github.com/CineScript/CineScriptStudio/internal/models"
	"github.com/CineScript/CineScriptStudio/internal/services"
)

// Handler 处理API请求
type Handler struct {
	// 核心服务
	ProjectService  *services.ProjectService  // 项目文档存储
	PipelineService *services.PipelineService // 步骤流水线
	ScriptService   *services.ScriptService   // 剧本分析
	CastService     *services.CastService     // 角色
	SetService      *services.SetService      // 布景
	SceneService    *services.SceneService    // 分镜
	PromptService   *services.PromptService   // 提示词
	VideoService    *services.VideoService    // 视频任务
	LocaleService   *services.LocaleService   // 本地化
	GenAIService    *services.GenAIService    // 生成后端
	VideoHub        *VideoStatusHub           // WebSocket 集线器
	Response        *ResponseHelper           // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(
	projectService *services.ProjectService,
	pipelineService *services.PipelineService,
	scriptService *services.ScriptService,
	castService *services.CastService,
	setService *services.SetService,
	sceneService *services.SceneService,
	promptService *services.PromptService,
	videoService *services.VideoService,
	localeService *services.LocaleService,
	genaiService *services.GenAIService,
	videoHub *VideoStatusHub,
) *Handler {
	return &Handler{
		ProjectService:  projectService,
		PipelineService: pipelineService,
		ScriptService:   scriptService,
		CastService:     castService,
		SetService:      setService,
		SceneService:    sceneService,
		PromptService:   promptService,
		VideoService:    videoService,
		LocaleService:   localeService,
		GenAIService:    genaiService,
		VideoHub:        videoHub,
		Response:        NewResponseHelper(),
	}
}

// respondServiceError 把服务层错误映射到统一的错误响应
// action 用于生成失败时指明是哪一步出的问题
func (h *Handler) respondServiceError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, services.ErrResetNotConfirmed):
		h.Response.Error(c, http.StatusBadRequest, ErrorResetNotConfirmed, "重置需要显式确认")
	case errors.Is(err, services.ErrScriptEmpty):
		h.Response.Error(c, http.StatusBadRequest, ErrorPrecondition, "请先提供剧本文本")
	case errors.Is(err, services.ErrScenesEmpty):
		h.Response.Error(c, http.StatusBadRequest, ErrorPrecondition, "请先生成分镜")
	case errors.Is(err, services.ErrStyleNotSelected):
		h.Response.Error(c, http.StatusBadRequest, ErrorPrecondition, "请先选择视觉风格")
	case errors.Is(err, services.ErrCharacterNotFound):
		h.Response.Error(c, http.StatusNotFound, ErrorCharacterNotFound, err.Error())
	case errors.Is(err, services.ErrSetNotFound):
		h.Response.Error(c, http.StatusNotFound, ErrorSetNotFound, err.Error())
	case errors.Is(err, services.ErrPromptNotFound):
		h.Response.Error(c, http.StatusNotFound, ErrorPromptNotFound, err.Error())
	case errors.Is(err, services.ErrModelNotSupported):
		h.Response.Error(c, http.StatusBadRequest, ErrorModelNotSupported, err.Error())
	case errors.Is(err, services.ErrVideoJobRunning):
		h.Response.Conflict(c, ErrorVideoJobRunning, err.Error())
	case errors.Is(err, services.ErrGenAINotReady):
		h.Response.Error(c, http.StatusServiceUnavailable, ErrorGenAINotReady, err.Error())
	default:
		if action != "" {
			h.Response.BadGateway(c, ErrorGenerationFailed, action+"失败", err.Error())
			return
		}
		h.Response.InternalError(c, err.Error())
	}
}

// ---- 项目文档 ----

// GetProject 返回完整项目文档
func (h *Handler) GetProject(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"project":    h.ProjectService.Current(),
		"step":       h.PipelineService.Current(),
		"generation": h.PipelineService.Generation(),
		"autosave":   h.ProjectService.Autosave(),
	})
}

// PatchProject 对项目文档做逐字段浅合并
func (h *Handler) PatchProject(c *gin.Context) {
	var patch models.ProjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.Response.BadRequest(c, "无效的补丁格式", err.Error())
		return
	}
	project, err := h.ProjectService.Apply(patch)
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	h.Response.Success(c, project)
}

// ResetProject 把项目恢复为默认文档（保留密钥），并回到第一步
func (h *Handler) ResetProject(c *gin.Context) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	if err := h.PipelineService.Reset(req.Confirm); err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	h.Response.Success(c, gin.H{
		"project":    h.ProjectService.Current(),
		"step":       h.PipelineService.Current(),
		"generation": h.PipelineService.Generation(),
	})
}

// ---- 步骤流水线 ----

// GetPipeline 返回当前步骤
func (h *Handler) GetPipeline(c *gin.Context) {
	step := h.PipelineService.Current()
	h.Response.Success(c, gin.H{
		"step":       step,
		"step_name":  step.String(),
		"generation": h.PipelineService.Generation(),
	})
}

// stepComplete 当前步骤的完成度判定，由步骤视图层负责
func (h *Handler) stepComplete(step services.Step) (bool, string) {
	project := h.ProjectService.Current()
	switch step {
	case services.StepScript:
		if project.RawScript == "" {
			return false, "请先提供并分析剧本"
		}
	case services.StepStyle:
		if project.SelectedStyle == nil {
			return false, "请先选择视觉风格"
		}
	case services.StepCast:
		if len(project.Cast) == 0 {
			return false, "请先生成或添加角色"
		}
	case services.StepSets:
		if len(project.Sets) == 0 {
			return false, "请先生成或添加布景"
		}
	case services.StepScenes:
		if len(project.Scenes) == 0 {
			return false, "请先生成分镜"
		}
	}
	return true, ""
}

// AdvancePipeline 校验当前步骤完成度后前进一步
func (h *Handler) AdvancePipeline(c *gin.Context) {
	current := h.PipelineService.Current()
	if ok, reason := h.stepComplete(current); !ok {
		h.Response.Error(c, http.StatusBadRequest, ErrorStepIncomplete, reason)
		return
	}
	step := h.PipelineService.Advance()
	h.Response.Success(c, gin.H{"step": step, "step_name": step.String()})
}

// RetreatPipeline 后退一步
func (h *Handler) RetreatPipeline(c *gin.Context) {
	step := h.PipelineService.Retreat()
	h.Response.Success(c, gin.H{"step": step, "step_name": step.String()})
}

// ---- 剧本 ----

// AnalyzeScript 保存剧本文本并做基调/角色/地点分析
func (h *Handler) AnalyzeScript(c *gin.Context) {
	var req struct {
		Script string `json:"script"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	project, err := h.ScriptService.Analyze(c.Request.Context(), req.Script)
	if err != nil {
		h.respondServiceError(c, err, "剧本分析")
		return
	}
	h.Response.Success(c, project)
}

// ---- 视觉风格 ----

// GetStyles 返回预设风格目录
func (h *Handler) GetStyles(c *gin.Context) {
	h.Response.Success(c, models.PresetStyles())
}

// SelectStyle 选择预设风格或创建自定义风格
func (h *Handler) SelectStyle(c *gin.Context) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	var style models.VisualStyle
	if req.ID == models.StyleCustomID {
		if req.Name == "" {
			h.Response.BadRequest(c, "自定义风格需要名称")
			return
		}
		style = models.NewCustomStyle(req.Name)
	} else {
		preset, ok := models.FindPresetStyle(req.ID)
		if !ok {
			h.Response.NotFound(c, "未知的风格: "+req.ID)
			return
		}
		style = preset
	}

	project, err := h.ProjectService.Apply(models.ProjectPatch{Style: &style})
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	h.Response.Success(c, project)
}

// EditStyleRule 修改当前风格的单条规则
// 编辑预设会提升为 custom 变体，预设目录本身不可变
func (h *Handler) EditStyleRule(c *gin.Context) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	switch req.Field {
	case "render", "lighting", "color", "camera":
	default:
		h.Response.BadRequest(c, "未知的规则字段: "+req.Field)
		return
	}

	current := h.ProjectService.Current()
	promoted := models.PromoteStyle(current.SelectedStyle, req.Field, req.Value)
	project, err := h.ProjectService.Apply(models.ProjectPatch{Style: &promoted})
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	h.Response.Success(c, project)
}

// ---- 角色 ----

// GenerateCast 从剧本生成角色并追加
func (h *Handler) GenerateCast(c *gin.Context) {
	project, err := h.CastService.Generate(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "角色生成")
		return
	}
	h.Response.Success(c, project)
}

// AddCharacter 手动添加角色
func (h *Handler) AddCharacter(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Role        string `json:"role"`
		Appearance  string `json:"appearance"`
		Personality string `json:"personality"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	project, err := h.CastService.Add(req.Name, req.Role, req.Appearance, req.Personality, req.Description)
	if err != nil {
		h.Response.BadRequest(c, err.Error())
		return
	}
	h.Response.Created(c, project)
}

// RemoveCharacter 删除角色
func (h *Handler) RemoveCharacter(c *gin.Context) {
	project, err := h.CastService.Remove(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	h.Response.Success(c, project)
}

// CharacterPreview 为角色生成风格化预览图
func (h *Handler) CharacterPreview(c *gin.Context) {
	project, err := h.CastService.GeneratePreview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err, "角色预览图生成")
		return
	}
	h.Response.Success(c, project)
}

// ---- 布景 ----

// GenerateSets 从剧本识别地点并追加
func (h *Handler) GenerateSets(c *gin.Context) {
	project, err := h.SetService.Generate(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "布景生成")
		return
	}
	h.Response.Success(c, project)
}

// AddSet 手动添加布景
func (h *Handler) AddSet(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		VisualVibe  string `json:"visual_vibe"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	project, err := h.SetService.Add(req.Name, req.Description, req.VisualVibe)
	if err != nil {
		h.Response.BadRequest(c, err.Error())
		return
	}
	h.Response.Created(c, project)
}

// RemoveSet 删除布景
func (h *Handler) RemoveSet(c *gin.Context) {
	project, err := h.SetService.Remove(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	h.Response.Success(c, project)
}

// MoveSet 调整布景顺序
func (h *Handler) MoveSet(c *gin.Context) {
	var req struct {
		Direction int `json:"direction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	project, err := h.SetService.Move(c.Param("id"), req.Direction)
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	h.Response.Success(c, project)
}

// SetPreview 为布景生成风格化概念图
func (h *Handler) SetPreview(c *gin.Context) {
	project, err := h.SetService.GeneratePreview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err, "布景预览图生成")
		return
	}
	h.Response.Success(c, project)
}

// ---- 分镜 ----

// GenerateScenes 重新生成完整分镜列表
func (h *Handler) GenerateScenes(c *gin.Context) {
	project, err := h.SceneService.Generate(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "分镜生成")
		return
	}
	h.Response.Success(c, project)
}

// ---- 提示词 ----

// GeneratePrompts 重新合成全部提示词
func (h *Handler) GeneratePrompts(c *gin.Context) {
	project, err := h.PromptService.Generate(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "提示词生成")
		return
	}
	h.Response.Success(c, project)
}

// ExportPrompts 导出全部提示词为纯文本
func (h *Handler) ExportPrompts(c *gin.Context) {
	h.Response.Text(c, h.PromptService.ExportAll())
}

func (h *Handler) sceneIDParam(c *gin.Context) (int, bool) {
	sceneID, err := strconv.Atoi(c.Param("sceneId"))
	if err != nil {
		h.Response.BadRequest(c, "无效的镜头编号: "+c.Param("sceneId"))
		return 0, false
	}
	return sceneID, true
}

// UpdatePrompt 修改单条提示词文本
func (h *Handler) UpdatePrompt(c *gin.Context) {
	sceneID, ok := h.sceneIDParam(c)
	if !ok {
		return
	}
	var req struct {
		PromptText string `json:"prompt_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	project, err := h.PromptService.UpdateText(sceneID, req.PromptText)
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	h.Response.Success(c, project)
}

// DeletePrompt 删除单条提示词
func (h *Handler) DeletePrompt(c *gin.Context) {
	sceneID, ok := h.sceneIDParam(c)
	if !ok {
		return
	}
	project, err := h.PromptService.Delete(sceneID)
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	h.Response.Success(c, project)
}

// ---- 视频 ----

// StartVideo 为单个镜头发起视频生成（首次/重试/重新生成）
// 目标模型为 Custom 时不提交任务，返回可复制的完整提示词
func (h *Handler) StartVideo(c *gin.Context) {
	sceneID, ok := h.sceneIDParam(c)
	if !ok {
		return
	}
	result, err := h.VideoService.Start(c.Request.Context(), sceneID)
	if err != nil {
		h.respondServiceError(c, err, "视频任务提交")
		return
	}
	h.Response.Success(c, result)
}

// ---- 设置 ----

// GetKeys 返回按目标模型存储的密钥表
func (h *Handler) GetKeys(c *gin.Context) {
	project := h.ProjectService.Current()
	h.Response.Success(c, gin.H{
		"api_keys": project.APIKeys,
		"autosave": h.ProjectService.Autosave(),
	})
}

// PutKey 设置某个目标模型的密钥
func (h *Handler) PutKey(c *gin.Context) {
	var req struct {
		Model string `json:"model"`
		Key   string `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	if req.Model == "" {
		h.Response.BadRequest(c, "目标模型不能为空")
		return
	}
	project, err := h.ProjectService.SetAPIKey(req.Model, req.Key)
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}

	// 刷新生成后端的密钥配置，失败不影响密钥保存
	if req.Key != "" {
		genConfig := map[string]string{"api_key": req.Key}
		if err := config.UpdateGenConfig("google", genConfig); err != nil {
			h.Response.Success(c, project, "密钥已保存，但配置持久化失败: "+err.Error())
			return
		}
		if err := h.GenAIService.UpdateProvider("google", genConfig); err != nil {
			h.Response.Success(c, project, "密钥已保存，但生成后端初始化失败: "+err.Error())
			return
		}
	}
	h.Response.Success(c, project)
}

// PutAutosave 切换自动保存
func (h *Handler) PutAutosave(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	if err := h.ProjectService.SetAutosave(req.Enabled); err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	h.Response.Success(c, gin.H{"autosave": h.ProjectService.Autosave()})
}

// ---- 本地化 ----

// GetLanguage 返回当前语言与完整标签表
func (h *Handler) GetLanguage(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"language": h.LocaleService.Current(),
		"labels":   h.LocaleService.Labels(),
	})
}

// PutLanguage 切换界面语言
func (h *Handler) PutLanguage(c *gin.Context) {
	var req struct {
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}
	if err := h.LocaleService.SetLanguage(req.Language); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLanguageInvalid, err.Error())
		return
	}
	h.Response.Success(c, gin.H{
		"language": h.LocaleService.Current(),
		"labels":   h.LocaleService.Labels(),
	})
}

// ---- 健康检查 ----

// Health 返回服务整体状态
func (h *Handler) Health(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":       "ok",
		"genai_ready":  h.GenAIService.IsReady(),
		"genai_state":  h.GenAIService.GetReadyState(),
		"active_jobs":  h.VideoService.ActiveJobs(),
		"ws_clients":   h.VideoHub.ClientCount(),
		"current_step": h.PipelineService.Current().String(),
	})
}
