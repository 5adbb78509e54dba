// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CineScript/CineScriptStudio/internal/config"
	"github.com/CineScript/CineScriptStudio/internal/di"
	"github.com/CineScript/CineScriptStudio/internal/services"
)

// SetupRouter 配置HTTP路由
// 只从容器获取服务，不在这里创建新实例
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	projectService, ok := container.Get("project").(*services.ProjectService)
	if !ok {
		return nil, fmt.Errorf("项目服务未正确初始化")
	}
	pipelineService, ok := container.Get("pipeline").(*services.PipelineService)
	if !ok {
		return nil, fmt.Errorf("流水线服务未正确初始化")
	}
	scriptService, ok := container.Get("script").(*services.ScriptService)
	if !ok {
		return nil, fmt.Errorf("剧本服务未正确初始化")
	}
	castService, ok := container.Get("cast").(*services.CastService)
	if !ok {
		return nil, fmt.Errorf("角色服务未正确初始化")
	}
	setService, ok := container.Get("sets").(*services.SetService)
	if !ok {
		return nil, fmt.Errorf("布景服务未正确初始化")
	}
	sceneService, ok := container.Get("scenes").(*services.SceneService)
	if !ok {
		return nil, fmt.Errorf("分镜服务未正确初始化")
	}
	promptService, ok := container.Get("prompts").(*services.PromptService)
	if !ok {
		return nil, fmt.Errorf("提示词服务未正确初始化")
	}
	videoService, ok := container.Get("video").(*services.VideoService)
	if !ok {
		return nil, fmt.Errorf("视频服务未正确初始化")
	}
	localeService, ok := container.Get("locale").(*services.LocaleService)
	if !ok {
		return nil, fmt.Errorf("本地化服务未正确初始化")
	}
	genaiService, ok := container.Get("genai").(*services.GenAIService)
	if !ok {
		return nil, fmt.Errorf("生成服务未正确初始化")
	}
	videoHub, ok := container.Get("video_hub").(*VideoStatusHub)
	if !ok {
		return nil, fmt.Errorf("WebSocket 集线器未正确初始化")
	}

	handler := NewHandler(
		projectService,
		pipelineService,
		scriptService,
		castService,
		setService,
		sceneService,
		promptService,
		videoService,
		localeService,
		genaiService,
		videoHub,
	)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", handler.Health)

		apiGroup.GET("/project", handler.GetProject)
		apiGroup.PATCH("/project", handler.PatchProject)
		apiGroup.POST("/project/reset", handler.ResetProject)

		apiGroup.GET("/pipeline", handler.GetPipeline)
		apiGroup.POST("/pipeline/advance", handler.AdvancePipeline)
		apiGroup.POST("/pipeline/retreat", handler.RetreatPipeline)

		apiGroup.POST("/script/analyze", handler.AnalyzeScript)

		apiGroup.GET("/styles", handler.GetStyles)
		apiGroup.PUT("/style", handler.SelectStyle)
		apiGroup.POST("/style/rule", handler.EditStyleRule)

		apiGroup.POST("/cast/generate", handler.GenerateCast)
		apiGroup.POST("/cast", handler.AddCharacter)
		apiGroup.DELETE("/cast/:id", handler.RemoveCharacter)
		apiGroup.POST("/cast/:id/preview", handler.CharacterPreview)

		apiGroup.POST("/sets/generate", handler.GenerateSets)
		apiGroup.POST("/sets", handler.AddSet)
		apiGroup.DELETE("/sets/:id", handler.RemoveSet)
		apiGroup.POST("/sets/:id/move", handler.MoveSet)
		apiGroup.POST("/sets/:id/preview", handler.SetPreview)

		apiGroup.POST("/scenes/generate", handler.GenerateScenes)

		apiGroup.POST("/prompts/generate", handler.GeneratePrompts)
		apiGroup.GET("/prompts/export", handler.ExportPrompts)
		apiGroup.PUT("/prompts/:sceneId", handler.UpdatePrompt)
		apiGroup.DELETE("/prompts/:sceneId", handler.DeletePrompt)
		apiGroup.POST("/prompts/:sceneId/video", handler.StartVideo)

		apiGroup.GET("/settings/keys", handler.GetKeys)
		apiGroup.PUT("/settings/keys", handler.PutKey)
		apiGroup.PUT("/settings/keys/autosave", handler.PutAutosave)

		apiGroup.GET("/language", handler.GetLanguage)
		apiGroup.PUT("/language", handler.PutLanguage)
	}

	r.GET("/ws/videos", videoHub.HandleWebSocket)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}
