// internal/models/styles.go
package models

import "strings"

// StyleCustomID 自定义风格的保留 id
const StyleCustomID = "custom"

// newPresetStyle 构造一个预设风格条目
func newPresetStyle(name, render, lighting, color string) VisualStyle {
	return VisualStyle{
		ID:          strings.ReplaceAll(strings.ToLower(name), " ", "_"),
		Name:        name,
		Description: name + " style visual aesthetic",
		Rules: StyleRules{
			Render:   render,
			Lighting: lighting,
			Color:    color,
			Camera:   "Dynamic",
		},
	}
}

// PresetStyles 返回固定的预设风格目录（副本，目录本身不可变）
func PresetStyles() []VisualStyle {
	return []VisualStyle{
		newPresetStyle("3D Cartoon", "3D Cartoon, Pixar-style, smooth surfacing", "Cinematic", "Vibrant"),
		newPresetStyle("2D Anime", "2D Anime, Japanese animation style, cel shaded", "Cinematic", "Vibrant"),
		newPresetStyle("Realistic CG", "Realistic CG, Unreal Engine 5, 8k, detailed", "Cinematic", "Vibrant"),
		newPresetStyle("Pixel Art", "Pixel Art, 16-bit, retro game style", "Cinematic", "Vibrant"),
		newPresetStyle("Cinematic", "Cinematic, movie quality, photorealistic", "Cinematic", "Vibrant"),
		newPresetStyle("Ghibli", "Studio Ghibli style, hand-painted backgrounds", "Cinematic", "Vibrant"),
		newPresetStyle("2D Novel", "Visual Novel style, illustrated, static beauty", "Cinematic", "Vibrant"),
		newPresetStyle("Clay", "Claymation, stop-motion, plasticine texture", "Cinematic", "Vibrant"),
		newPresetStyle("Ndebele Cartoon Style", "Ndebele art patterns, bold geometric, cartoon", "Cinematic", "Vibrant"),
	}
}

// FindPresetStyle 按 id 查找预设风格
func FindPresetStyle(id string) (VisualStyle, bool) {
	for _, s := range PresetStyles() {
		if s.ID == id {
			return s, true
		}
	}
	return VisualStyle{}, false
}

// NewCustomStyle 从自由文本创建自定义风格
func NewCustomStyle(name string) VisualStyle {
	return VisualStyle{
		ID:          StyleCustomID,
		Name:        name,
		Description: name,
		Rules: StyleRules{
			Render:   name,
			Lighting: "Dynamic",
			Color:    "Dynamic",
			Camera:   "Cinematic",
		},
	}
}

// PromoteStyle 把基准风格提升为自定义变体并套用单条规则修改
// 预设不可变：编辑预设的规则永远产生/更新 custom 变体，其余规则沿用基准值
func PromoteStyle(base *VisualStyle, field, value string) VisualStyle {
	var promoted VisualStyle
	if base != nil {
		promoted = *base
	} else {
		promoted = NewCustomStyle("Custom")
		promoted.Rules.Render = "Dynamic"
	}
	promoted.ID = StyleCustomID

	switch field {
	case "render":
		promoted.Rules.Render = value
	case "lighting":
		promoted.Rules.Lighting = value
	case "color":
		promoted.Rules.Color = value
	case "camera":
		promoted.Rules.Camera = value
	}
	return promoted
}
