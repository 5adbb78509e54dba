// internal/models/styles_test.go
package models

import "testing"

func TestPresetCatalog(t *testing.T) {
	presets := PresetStyles()
	if len(presets) != 9 {
		t.Fatalf("预设目录应有 9 个条目，实际 %d", len(presets))
	}

	seen := map[string]bool{}
	for _, preset := range presets {
		if preset.ID == "" || preset.ID == StyleCustomID {
			t.Errorf("预设 %s 的 id 非法: %q", preset.Name, preset.ID)
		}
		if seen[preset.ID] {
			t.Errorf("预设 id 重复: %s", preset.ID)
		}
		seen[preset.ID] = true
		if preset.Rules.Render == "" || preset.Rules.Lighting == "" || preset.Rules.Color == "" || preset.Rules.Camera == "" {
			t.Errorf("预设 %s 的规则不完整: %+v", preset.Name, preset.Rules)
		}
	}
}

func TestFindPresetStyle(t *testing.T) {
	if _, ok := FindPresetStyle("ghibli"); !ok {
		t.Error("应能按 id 找到 ghibli 预设")
	}
	if _, ok := FindPresetStyle("nope"); ok {
		t.Error("未知 id 不应命中")
	}
}

func TestNewCustomStyle(t *testing.T) {
	style := NewCustomStyle("Watercolor dreams")
	if style.ID != StyleCustomID {
		t.Errorf("自定义风格 id 应为 custom，实际 %s", style.ID)
	}
	if !style.IsCustom() {
		t.Error("IsCustom 应为 true")
	}
	if style.Rules.Render != "Watercolor dreams" {
		t.Errorf("自由文本应落到渲染规则，实际 %s", style.Rules.Render)
	}
	if style.Rules.Lighting != "Dynamic" || style.Rules.Color != "Dynamic" || style.Rules.Camera != "Cinematic" {
		t.Errorf("其余规则应取默认值，实际 %+v", style.Rules)
	}
}

func TestPromoteStylePreservesPreset(t *testing.T) {
	preset, _ := FindPresetStyle("pixel_art")
	originalRender := preset.Rules.Render

	promoted := PromoteStyle(&preset, "lighting", "Moonlit")

	if promoted.ID != StyleCustomID {
		t.Errorf("编辑预设应提升为 custom，实际 id 为 %s", promoted.ID)
	}
	if promoted.Rules.Lighting != "Moonlit" {
		t.Errorf("被编辑的规则应更新，实际 %s", promoted.Rules.Lighting)
	}
	if promoted.Rules.Render != originalRender {
		t.Error("未编辑的规则应沿用基准值")
	}

	// 预设本身不可变
	fresh, _ := FindPresetStyle("pixel_art")
	if fresh.Rules.Lighting == "Moonlit" {
		t.Error("提升不应污染预设目录")
	}
}

func TestPromoteStyleWithoutBase(t *testing.T) {
	promoted := PromoteStyle(nil, "color", "Sepia")
	if promoted.ID != StyleCustomID {
		t.Errorf("无基准的提升应产生 custom 风格，实际 %s", promoted.ID)
	}
	if promoted.Rules.Color != "Sepia" {
		t.Errorf("规则应被套用，实际 %s", promoted.Rules.Color)
	}
}

func TestPromoteCustomStaysCustom(t *testing.T) {
	custom := NewCustomStyle("My style")
	promoted := PromoteStyle(&custom, "camera", "Handheld")
	if promoted.ID != StyleCustomID || promoted.Name != "My style" {
		t.Errorf("编辑 custom 应原地更新，实际 %+v", promoted)
	}
	if promoted.Rules.Camera != "Handheld" {
		t.Errorf("规则应被更新，实际 %s", promoted.Rules.Camera)
	}
}

func TestProjectClone(t *testing.T) {
	project := DefaultProject()
	project.Cast = append(project.Cast, Character{ID: "char_1", Name: "Mara"})
	project.Scenes = append(project.Scenes, Scene{ID: 1, Characters: []string{"Mara"}})
	style := NewCustomStyle("X")
	project.SelectedStyle = &style
	project.APIKeys["Google Veo"] = "k"

	clone := project.Clone()
	clone.Cast[0].Name = "Hacked"
	clone.Scenes[0].Characters[0] = "Hacked"
	clone.SelectedStyle.Name = "Hacked"
	clone.APIKeys["Google Veo"] = "hacked"

	if project.Cast[0].Name != "Mara" {
		t.Error("克隆应深拷贝角色列表")
	}
	if project.Scenes[0].Characters[0] != "Mara" {
		t.Error("克隆应深拷贝镜头的角色名列表")
	}
	if project.SelectedStyle.Name != "X" {
		t.Error("克隆应深拷贝已选风格")
	}
	if project.APIKeys["Google Veo"] != "k" {
		t.Error("克隆应深拷贝密钥表")
	}
}
