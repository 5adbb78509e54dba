// internal/services/project_service_test.go
package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CineScript/CineScriptStudio/internal/models"
	"github.com/CineScript/CineScriptStudio/internal/storage"
)

func TestDefaultProject(t *testing.T) {
	projectService, _, _ := newTestProjectService(t)
	project := projectService.Current()

	if project.TargetModel != "Google Veo" {
		t.Errorf("默认目标模型应为 Google Veo，实际为 %s", project.TargetModel)
	}
	if project.TargetDuration != "3 min" {
		t.Errorf("默认时长应为 3 min，实际为 %s", project.TargetDuration)
	}
	if project.TargetSceneCount != 23 {
		t.Errorf("默认镜头数应为 23，实际为 %d", project.TargetSceneCount)
	}
	if project.AspectRatio != "16:9" {
		t.Errorf("默认画幅应为 16:9，实际为 %s", project.AspectRatio)
	}
	if project.SelectedStyle != nil {
		t.Error("新项目不应有已选风格")
	}
}

func TestApplyShallowMerge(t *testing.T) {
	projectService, _, _ := newTestProjectService(t)

	script := "INT. LAB - NIGHT"
	tone := "Sci-fi thriller"
	if _, err := projectService.Apply(models.ProjectPatch{RawScript: &script, Tone: &tone}); err != nil {
		t.Fatalf("应用补丁失败: %v", err)
	}

	// 第二个补丁只改时长，之前的字段应保持不变
	duration := "5 min"
	project, err := projectService.Apply(models.ProjectPatch{TargetDuration: &duration})
	if err != nil {
		t.Fatalf("应用补丁失败: %v", err)
	}

	if project.RawScript != script {
		t.Errorf("浅合并不应清掉未提及的字段，剧本变成了 %q", project.RawScript)
	}
	if project.Tone != tone {
		t.Errorf("基调应保持 %q，实际为 %q", tone, project.Tone)
	}
	if project.TargetDuration != "5 min" {
		t.Errorf("时长应更新为 5 min，实际为 %s", project.TargetDuration)
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	projectService, _, _ := newTestProjectService(t)
	if _, err := projectService.AppendCast([]models.Character{{ID: "char_1", Name: "Mara"}}); err != nil {
		t.Fatalf("追加角色失败: %v", err)
	}

	snapshot := projectService.Current()
	snapshot.Cast[0].Name = "Hacked"

	if projectService.Current().Cast[0].Name != "Mara" {
		t.Error("修改快照不应影响内部状态")
	}
}

func TestAppendCastAccumulates(t *testing.T) {
	projectService, _, _ := newTestProjectService(t)

	projectService.AppendCast([]models.Character{{ID: "char_1", Name: "Mara"}})
	project, _ := projectService.AppendCast([]models.Character{{ID: "auto_char_1_0", Name: "Juno"}})

	if len(project.Cast) != 2 {
		t.Fatalf("追加应累积条目，期望 2 个角色，实际 %d", len(project.Cast))
	}
	if project.Cast[0].Name != "Mara" || project.Cast[1].Name != "Juno" {
		t.Error("追加应保持原有顺序")
	}
}

func TestMoveSetSwapAndBounds(t *testing.T) {
	projectService, _, _ := newTestProjectService(t)
	projectService.AppendSets([]models.StorySet{
		{ID: "set_1", Name: "Lab"},
		{ID: "set_2", Name: "Rooftop"},
		{ID: "set_3", Name: "Street"},
	})

	project, err := projectService.MoveSet("set_3", -1)
	if err != nil {
		t.Fatalf("上移失败: %v", err)
	}
	if project.Sets[1].ID != "set_3" || project.Sets[2].ID != "set_2" {
		t.Errorf("上移应交换相邻条目，实际顺序 %v %v %v", project.Sets[0].ID, project.Sets[1].ID, project.Sets[2].ID)
	}

	// 越界移动是无操作
	project, err = projectService.MoveSet("set_1", -1)
	if err != nil {
		t.Fatalf("越界移动不应报错: %v", err)
	}
	if project.Sets[0].ID != "set_1" {
		t.Error("首位条目上移应保持原位")
	}
}

func TestReplaceScenesRenumbers(t *testing.T) {
	projectService, _, _ := newTestProjectService(t)

	project, err := projectService.ReplaceScenes([]models.Scene{
		{ID: 99, Action: "Opening"},
		{ID: 4, Action: "Chase"},
		{ID: 4, Action: "Finale"},
	})
	if err != nil {
		t.Fatalf("替换分镜失败: %v", err)
	}

	for i, scene := range project.Scenes {
		if scene.ID != i+1 {
			t.Errorf("镜头 %d 应编号为 %d，实际为 %d", i, i+1, scene.ID)
		}
	}
}

func TestReplacePromptsSortsAndResets(t *testing.T) {
	projectService, _, _ := newTestProjectService(t)

	project, err := projectService.ReplacePrompts([]models.GeneratedPrompt{
		{SceneID: 3, PromptText: "c", VideoStatus: models.VideoCompleted, VideoURL: "http://old"},
		{SceneID: 1, PromptText: "a"},
		{SceneID: 2, PromptText: "b", VideoStatus: models.VideoFailed},
	})
	if err != nil {
		t.Fatalf("替换提示词失败: %v", err)
	}

	for i, prompt := range project.Prompts {
		if prompt.SceneID != i+1 {
			t.Errorf("提示词应按镜头编号升序，位置 %d 的编号为 %d", i, prompt.SceneID)
		}
		if prompt.VideoStatus != models.VideoIdle {
			t.Errorf("替换后视频状态应回到 idle，镜头 %d 为 %s", prompt.SceneID, prompt.VideoStatus)
		}
		if prompt.VideoURL != "" {
			t.Errorf("替换后不应保留历史视频地址，镜头 %d 为 %s", prompt.SceneID, prompt.VideoURL)
		}
	}
}

func TestSetVideoStateTransitions(t *testing.T) {
	projectService, _, _ := newTestProjectService(t)
	projectService.ReplacePrompts([]models.GeneratedPrompt{{SceneID: 1, PromptText: "a"}})

	// completed 记录视频地址
	projectService.SetVideoState(1, models.VideoGenerating, "")
	project, _ := projectService.SetVideoState(1, models.VideoCompleted, "https://video/1")
	if project.Prompts[0].VideoStatus != models.VideoCompleted || project.Prompts[0].VideoURL != "https://video/1" {
		t.Errorf("完成状态应携带视频地址，实际 %s %s", project.Prompts[0].VideoStatus, project.Prompts[0].VideoURL)
	}

	// 重新进入 generating 应清掉旧地址
	project, _ = projectService.SetVideoState(1, models.VideoGenerating, "")
	if project.Prompts[0].VideoURL != "" {
		t.Error("重新生成时应清空旧的视频地址")
	}

	if _, err := projectService.SetVideoState(42, models.VideoGenerating, ""); err == nil {
		t.Error("不存在的镜头应返回错误")
	}
}

func TestDeletePromptKeepsScene(t *testing.T) {
	projectService, _, _ := newTestProjectService(t)
	projectService.ReplaceScenes([]models.Scene{{Action: "a"}, {Action: "b"}})
	projectService.ReplacePrompts([]models.GeneratedPrompt{
		{SceneID: 1, PromptText: "a"},
		{SceneID: 2, PromptText: "b"},
	})

	project, err := projectService.DeletePrompt(1)
	if err != nil {
		t.Fatalf("删除提示词失败: %v", err)
	}
	if len(project.Prompts) != 1 || project.Prompts[0].SceneID != 2 {
		t.Error("应只删除指定提示词")
	}
	if len(project.Scenes) != 2 {
		t.Error("删除提示词不应影响分镜")
	}
}

func TestResetPreservesAPIKeys(t *testing.T) {
	projectService, _, _ := newTestProjectService(t)

	script := "some script"
	projectService.Apply(models.ProjectPatch{RawScript: &script})
	projectService.SetAPIKey("Google Veo", "secret-key")
	projectService.AppendCast([]models.Character{{ID: "char_1", Name: "Mara"}})

	if _, err := projectService.Reset(false); err != ErrResetNotConfirmed {
		t.Errorf("未确认的重置应被拒绝，实际错误 %v", err)
	}
	if projectService.ResetGeneration() != 0 {
		t.Error("被拒绝的重置不应增加代次")
	}

	project, err := projectService.Reset(true)
	if err != nil {
		t.Fatalf("重置失败: %v", err)
	}
	if project.RawScript != "" || len(project.Cast) != 0 {
		t.Error("重置后项目内容应回到默认值")
	}
	if project.APIKeys["Google Veo"] != "secret-key" {
		t.Error("重置应保留密钥表")
	}
	if projectService.ResetGeneration() != 1 {
		t.Errorf("重置代次应为 1，实际为 %d", projectService.ResetGeneration())
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	projectService, fileStorage, _ := newTestProjectService(t)

	script := "INT. LAB"
	projectService.Apply(models.ProjectPatch{RawScript: &script})
	projectService.SetAPIKey("Google Veo", "k-123")

	// 用同一目录重建服务，状态应完整恢复
	restored, err := NewProjectService(fileStorage, "")
	if err != nil {
		t.Fatalf("重建项目服务失败: %v", err)
	}
	project := restored.Current()
	if project.RawScript != "INT. LAB" {
		t.Errorf("剧本应从磁盘恢复，实际为 %q", project.RawScript)
	}
	if project.APIKeys["Google Veo"] != "k-123" {
		t.Error("密钥应从磁盘恢复")
	}
}

func TestCorruptProjectFileFallsBack(t *testing.T) {
	projectService, fileStorage, tempDir := newTestProjectService(t)
	_ = projectService

	if err := os.WriteFile(filepath.Join(tempDir, "project.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("写入损坏文件失败: %v", err)
	}

	restored, err := NewProjectService(fileStorage, "")
	if err != nil {
		t.Fatalf("损坏的项目文件不应导致启动失败: %v", err)
	}
	project := restored.Current()
	if project.TargetSceneCount != 23 {
		t.Error("损坏文件应静默回退到默认项目")
	}
}

func TestAutosaveOffLockout(t *testing.T) {
	projectService, fileStorage, _ := newTestProjectService(t)
	projectService.SetAPIKey("Google Veo", "k-999")

	if err := projectService.SetAutosave(false); err != nil {
		t.Fatalf("关闭自动保存失败: %v", err)
	}

	// 持久化的密钥条目应被删除，内存态保留
	if fileStorage.Exists("api_keys.json") {
		t.Error("关闭自动保存应删除已持久化的密钥条目")
	}
	if projectService.Current().APIKeys["Google Veo"] != "k-999" {
		t.Error("内存中的密钥应保留")
	}

	// 开关只锁密钥：关闭期间项目文档照常落盘，密钥不再写回
	script := "still saved"
	projectService.Apply(models.ProjectPatch{RawScript: &script})
	projectService.SetAPIKey("Google Flow", "k-000")
	if fileStorage.Exists("api_keys.json") {
		t.Error("关闭自动保存后设置密钥不应重建密钥文件")
	}

	restored, err := NewProjectService(fileStorage, "")
	if err != nil {
		t.Fatalf("重建项目服务失败: %v", err)
	}
	if restored.Current().APIKeys["Google Veo"] != "" {
		t.Error("重启后密钥应已丢失，这是关闭自动保存的预期代价")
	}
	if restored.Current().RawScript != "still saved" {
		t.Error("关闭自动保存期间的项目修改仍应落盘")
	}

	// 重新开启后密钥再次持久化
	if err := projectService.SetAutosave(true); err != nil {
		t.Fatalf("开启自动保存失败: %v", err)
	}
	if !fileStorage.Exists("api_keys.json") {
		t.Error("开启自动保存应立即写回密钥条目")
	}
}

func TestAPIKeysEncryptedAtRest(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "cinescript_crypto_*")
	if err != nil {
		t.Fatalf("创建临时测试目录失败: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	fileStorage, err := storage.NewFileStorage(tempDir)
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}

	projectService, err := NewProjectService(fileStorage, "unit-test-secret")
	if err != nil {
		t.Fatalf("创建项目服务失败: %v", err)
	}
	projectService.SetAPIKey("Google Veo", "plain-key")

	raw, err := os.ReadFile(filepath.Join(tempDir, "api_keys.json"))
	if err != nil {
		t.Fatalf("读取密钥文件失败: %v", err)
	}
	if string(raw) == "" || strings.Contains(string(raw), "plain-key") {
		t.Error("配置口令后密钥不应以明文落盘")
	}

	restored, err := NewProjectService(fileStorage, "unit-test-secret")
	if err != nil {
		t.Fatalf("重建项目服务失败: %v", err)
	}
	if restored.Current().APIKeys["Google Veo"] != "plain-key" {
		t.Error("加密存储的密钥应能解密恢复")
	}
}
