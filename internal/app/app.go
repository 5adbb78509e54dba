// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/CineScript/CineScriptStudio/internal/api"
	"github.com/CineScript/CineScriptStudio/internal/config"
	"github.com/CineScript/CineScriptStudio/internal/di"
	"github.com/CineScript/CineScriptStudio/internal/services"
	"github.com/CineScript/CineScriptStudio/internal/storage"
	"github.com/CineScript/CineScriptStudio/internal/utils"
)

// Server 可被优雅关闭的HTTP服务器抽象，测试时用模拟实现替换
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 应用程序实例
type App struct {
	server   Server
	stopChan chan struct{}
	mu       sync.Mutex
}

var (
	instance *App
	appMu    sync.Mutex
)

// GetApp 获取应用单例
func GetApp() *App {
	appMu.Lock()
	defer appMu.Unlock()
	if instance == nil {
		instance = &App{stopChan: make(chan struct{})}
	}
	return instance
}

// Initialize 完成配置、日志与服务的全部初始化
func (a *App) Initialize() error {
	baseConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		return fmt.Errorf("初始化配置系统失败: %w", err)
	}

	if err := utils.InitLogger(filepath.Join(baseConfig.LogDir, "server.log")); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	if err := InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	return nil
}

// InitServices 按依赖顺序初始化所有服务并注册进容器
// 顺序：存储 → 项目 → 生成后端 → 各步骤服务 → 推送
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化存储失败: %w", err)
	}
	container.Register("storage", fileStorage)

	projectService, err := services.NewProjectService(fileStorage, cfg.StorageSecret)
	if err != nil {
		return fmt.Errorf("初始化项目服务失败: %w", err)
	}
	container.Register("project", projectService)

	genaiService, err := services.NewGenAIService()
	if err != nil || genaiService == nil {
		utils.GetLogger().Warnf("生成服务初始化失败，使用后备服务: %v", err)
		genaiService = services.NewEmptyGenAIService()
	}
	container.Register("genai", genaiService)

	container.Register("pipeline", services.NewPipelineService(projectService))
	container.Register("script", services.NewScriptService(projectService, genaiService))
	container.Register("cast", services.NewCastService(projectService, genaiService))
	container.Register("sets", services.NewSetService(projectService, genaiService))
	container.Register("scenes", services.NewSceneService(projectService, genaiService))
	container.Register("prompts", services.NewPromptService(projectService, genaiService))

	videoService := services.NewVideoService(projectService, genaiService)
	container.Register("video", videoService)

	videoHub := api.NewVideoStatusHub()
	videoService.SetNotifier(videoHub)
	container.Register("video_hub", videoHub)

	container.Register("locale", services.NewLocaleService())

	return nil
}

// Run 启动HTTP服务器并阻塞到 Stop 被调用
func (a *App) Run() error {
	cfg := config.GetCurrentConfig()

	router, err := api.SetupRouter()
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}

	a.mu.Lock()
	if a.server == nil {
		a.server = &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: router,
		}
	}
	server := a.server
	a.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	utils.GetLogger().Infof("服务器启动在端口 %s", cfg.Port)

	select {
	case err := <-errChan:
		return fmt.Errorf("启动服务器失败: %w", err)
	case <-a.stopChan:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}

	utils.GetLogger().Infof("服务器已优雅关闭")
	return nil
}

// Stop 触发优雅关闭
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.stopChan:
	default:
		close(a.stopChan)
	}
}

// Cleanup 释放应用持有的资源
func (a *App) Cleanup() {
	container := di.GetContainer()
	if hub, ok := container.Get("video_hub").(*api.VideoStatusHub); ok && hub != nil {
		hub.Shutdown()
	}
	container.Clear()
}

// GetConfig 返回当前配置
func (a *App) GetConfig() *config.AppConfig {
	return config.GetCurrentConfig()
}

// GetDIContainer 返回依赖注入容器
func (a *App) GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode 返回是否处于调试模式
func (a *App) IsDebugMode() bool {
	cfg := config.GetCurrentConfig()
	return cfg != nil && cfg.DebugMode
}
