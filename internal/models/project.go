// internal/models/project.go
package models

// 角色定位的封闭集合
const (
	RoleHero       = "Hero"
	RoleVillain    = "Villain"
	RoleSupporting = "Supporting"
	RoleCreature   = "Creature"
)

// VideoStatus 视频任务状态机的状态
type VideoStatus string

const (
	VideoIdle       VideoStatus = "idle"
	VideoGenerating VideoStatus = "generating"
	VideoCompleted  VideoStatus = "completed"
	VideoFailed     VideoStatus = "failed"
)

// Character 表示剧本中的一个角色档案
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Appearance  string `json:"appearance"`
	Personality string `json:"personality"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

// StorySet 表示一个场景地点（布景）
// 序列顺序由用户控制，生成提示词时按此顺序呈现
type StorySet struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	VisualVibe  string `json:"visual_vibe"`
	ImageURL    string `json:"image_url,omitempty"`
}

// StyleRules 视觉风格的四个自由文本维度
type StyleRules struct {
	Render   string `json:"render"`
	Lighting string `json:"lighting"`
	Color    string `json:"color"`
	Camera   string `json:"camera"`
}

// VisualStyle 视觉风格：预设目录中的条目或用户自定义变体
// 预设不可变，编辑预设的任何规则会提升为 id == "custom" 的自定义变体
type VisualStyle struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Rules        StyleRules `json:"rules"`
	PreviewColor string     `json:"preview_color,omitempty"`
}

// IsCustom 判断是否为自定义风格
func (v *VisualStyle) IsCustom() bool {
	return v != nil && v.ID == StyleCustomID
}

// Scene 表示一个叙事镜头
// ID 为 1 起始的连续序号，每次重新生成后按数组位置重新编号
type Scene struct {
	ID          int      `json:"id"`
	Location    string   `json:"location"`
	Action      string   `json:"action"`
	Characters  []string `json:"characters"`
	Duration    string   `json:"duration"`
	VisualNotes string   `json:"visual_notes,omitempty"`
}

// GeneratedPrompt 表示提交给视频后端的单镜头提示词
// SceneID 是对 Scene.ID 的弱引用，场景重建后允许留存孤儿条目
type GeneratedPrompt struct {
	SceneID        int         `json:"scene_id"`
	PromptText     string      `json:"prompt_text"`
	NegativePrompt string      `json:"negative_prompt,omitempty"`
	TechnicalSpecs string      `json:"technical_specs"`
	VideoURL       string      `json:"video_url,omitempty"`
	VideoStatus    VideoStatus `json:"video_status"`
}

// Project 是单个创作项目的根聚合，唯一属主是 ProjectService
type Project struct {
	RawScript              string            `json:"raw_script"`
	Tone                   string            `json:"tone"`
	DetectedCharacterNames []string          `json:"detected_character_names"`
	DetectedLocations      []string          `json:"detected_locations"`
	SelectedStyle          *VisualStyle      `json:"selected_style"`
	Cast                   []Character       `json:"cast"`
	Sets                   []StorySet        `json:"sets"`
	Scenes                 []Scene           `json:"scenes"`
	Prompts                []GeneratedPrompt `json:"prompts"`
	TargetModel            string            `json:"target_model"`
	TargetDuration         string            `json:"target_duration"`
	TargetSceneCount       int               `json:"target_scene_count"`
	AspectRatio            string            `json:"aspect_ratio"`
	APIKeys                map[string]string `json:"api_keys"`
}

// 默认生成配置
const (
	DefaultTargetModel      = "Google Veo"
	DefaultTargetDuration   = "3 min"
	DefaultTargetSceneCount = 23
	DefaultAspectRatio      = "16:9"
)

// DefaultProject 返回新项目的初始文档
func DefaultProject() Project {
	return Project{
		DetectedCharacterNames: []string{},
		DetectedLocations:      []string{},
		Cast:                   []Character{},
		Sets:                   []StorySet{},
		Scenes:                 []Scene{},
		Prompts:                []GeneratedPrompt{},
		TargetModel:            DefaultTargetModel,
		TargetDuration:         DefaultTargetDuration,
		TargetSceneCount:       DefaultTargetSceneCount,
		AspectRatio:            DefaultAspectRatio,
		APIKeys:                map[string]string{},
	}
}

// Clone 返回文档的深拷贝，防止调用方绕过 Store 修改聚合内部
func (p Project) Clone() Project {
	out := p
	out.DetectedCharacterNames = append([]string(nil), p.DetectedCharacterNames...)
	out.DetectedLocations = append([]string(nil), p.DetectedLocations...)
	out.Cast = append([]Character(nil), p.Cast...)
	out.Sets = append([]StorySet(nil), p.Sets...)
	out.Scenes = make([]Scene, len(p.Scenes))
	for i, s := range p.Scenes {
		out.Scenes[i] = s
		out.Scenes[i].Characters = append([]string(nil), s.Characters...)
	}
	out.Prompts = append([]GeneratedPrompt(nil), p.Prompts...)
	if p.SelectedStyle != nil {
		styleCopy := *p.SelectedStyle
		out.SelectedStyle = &styleCopy
	}
	out.APIKeys = make(map[string]string, len(p.APIKeys))
	for k, v := range p.APIKeys {
		out.APIKeys[k] = v
	}
	return out
}

// ProjectPatch 逐字段的浅合并补丁
// 指针非 nil 表示该字段被整体替换（无深合并语义）
// 追加语义（cast/sets 的自动生成）走 ProjectService 的专用操作，不走补丁
type ProjectPatch struct {
	RawScript              *string            `json:"raw_script,omitempty"`
	Tone                   *string            `json:"tone,omitempty"`
	DetectedCharacterNames *[]string          `json:"detected_character_names,omitempty"`
	DetectedLocations      *[]string          `json:"detected_locations,omitempty"`
	Style                  *VisualStyle       `json:"selected_style,omitempty"`
	ClearStyle             bool               `json:"clear_style,omitempty"`
	Cast                   *[]Character       `json:"cast,omitempty"`
	Sets                   *[]StorySet        `json:"sets,omitempty"`
	Scenes                 *[]Scene           `json:"scenes,omitempty"`
	Prompts                *[]GeneratedPrompt `json:"prompts,omitempty"`
	TargetModel            *string            `json:"target_model,omitempty"`
	TargetDuration         *string            `json:"target_duration,omitempty"`
	TargetSceneCount       *int               `json:"target_scene_count,omitempty"`
	AspectRatio            *string            `json:"aspect_ratio,omitempty"`
	APIKeys                *map[string]string `json:"api_keys,omitempty"`
}
