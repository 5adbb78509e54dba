// internal/services/locale_service.go
package services

import (
	"fmt"
	"sync"
)

// 支持的界面语言
const (
	LangEnglish = "en"
	LangKhmer   = "km"
)

// LocaleService 维护进程级的当前界面语言与标签字典
type LocaleService struct {
	mu      sync.RWMutex
	current string
}

// NewLocaleService 创建本地化服务，默认英文
func NewLocaleService() *LocaleService {
	return &LocaleService{current: LangEnglish}
}

// Current 返回当前语言代码
func (s *LocaleService) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetLanguage 切换当前语言
func (s *LocaleService) SetLanguage(lang string) error {
	if lang != LangEnglish && lang != LangKhmer {
		return fmt.Errorf("不支持的语言: %s", lang)
	}
	s.mu.Lock()
	s.current = lang
	s.mu.Unlock()
	return nil
}

// Labels 返回当前语言的完整标签表
func (s *LocaleService) Labels() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == LangKhmer {
		return labelsKm
	}
	return labelsEn
}

// Label 返回单个标签，缺失时回退到英文再回退到键名
func (s *LocaleService) Label(key string) string {
	labels := s.Labels()
	if v, ok := labels[key]; ok {
		return v
	}
	if v, ok := labelsEn[key]; ok {
		return v
	}
	return key
}

var labelsEn = map[string]string{
	"app.title":          "CineScript Studio",
	"step.script":        "Script",
	"step.style":         "Visual Style",
	"step.cast":          "Cast",
	"step.sets":          "Sets & Locations",
	"step.scenes":        "Scene Breakdown",
	"step.prompts":       "Prompts & Video",
	"action.next":        "Next",
	"action.back":        "Back",
	"action.reset":       "Start New Project",
	"action.analyze":     "Analyze Script",
	"action.generate":    "Generate",
	"action.regenerate":  "Regenerate",
	"action.retry":       "Retry",
	"action.add":         "Add",
	"action.delete":      "Delete",
	"action.preview":     "Generate Preview",
	"action.copyAll":     "Copy All Prompts",
	"action.copyPrompt":  "Copy Prompt",
	"script.placeholder": "Paste your script or story here...",
	"style.custom":       "Custom Style",
	"cast.empty":         "No characters yet. Generate from your script or add manually.",
	"sets.empty":         "No sets yet. Generate from your script or add manually.",
	"scenes.empty":       "No scenes yet. Generate a breakdown from your script.",
	"prompts.empty":      "No prompts yet. Generate them from your scenes.",
	"video.generating":   "Generating video...",
	"video.completed":    "Video ready",
	"video.failed":       "Generation failed",
	"settings.keys":      "API Keys",
	"settings.autosave":  "Auto-save project",
	"reset.confirm":      "This will erase your current project. API keys are kept.",
}

var labelsKm = map[string]string{
	"app.title":          "ស្ទូឌីយោ CineScript",
	"step.script":        "អត្ថបទរឿង",
	"step.style":         "រចនាបថរូបភាព",
	"step.cast":          "តួអង្គ",
	"step.sets":          "ទីតាំង",
	"step.scenes":        "ការបំបែកឈុត",
	"step.prompts":       "ប្រយោគបញ្ជា និងវីដេអូ",
	"action.next":        "បន្ទាប់",
	"action.back":        "ថយក្រោយ",
	"action.reset":       "ចាប់ផ្តើមគម្រោងថ្មី",
	"action.analyze":     "វិភាគអត្ថបទរឿង",
	"action.generate":    "បង្កើត",
	"action.regenerate":  "បង្កើតឡើងវិញ",
	"action.retry":       "ព្យាយាមម្តងទៀត",
	"action.add":         "បន្ថែម",
	"action.delete":      "លុប",
	"action.preview":     "បង្កើតរូបភាពមើលជាមុន",
	"action.copyAll":     "ចម្លងប្រយោគបញ្ជាទាំងអស់",
	"action.copyPrompt":  "ចម្លងប្រយោគបញ្ជា",
	"script.placeholder": "បិទភ្ជាប់អត្ថបទរឿងរបស់អ្នកនៅទីនេះ...",
	"style.custom":       "រចនាបថផ្ទាល់ខ្លួន",
	"cast.empty":         "មិនទាន់មានតួអង្គទេ។ បង្កើតពីអត្ថបទរឿង ឬបន្ថែមដោយដៃ។",
	"sets.empty":         "មិនទាន់មានទីតាំងទេ។ បង្កើតពីអត្ថបទរឿង ឬបន្ថែមដោយដៃ។",
	"scenes.empty":       "មិនទាន់មានឈុតទេ។ បង្កើតការបំបែកពីអត្ថបទរឿង។",
	"prompts.empty":      "មិនទាន់មានប្រយោគបញ្ជាទេ។ បង្កើតពីឈុតរបស់អ្នក។",
	"video.generating":   "កំពុងបង្កើតវីដេអូ...",
	"video.completed":    "វីដេអូរួចរាល់",
	"video.failed":       "ការបង្កើតបរាជ័យ",
	"settings.keys":      "សោ API",
	"settings.autosave":  "រក្សាទុកគម្រោងដោយស្វ័យប្រវត្តិ",
	"reset.confirm":      "វានឹងលុបគម្រោងបច្ចុប្បន្នរបស់អ្នក។ សោ API ត្រូវបានរក្សាទុក។",
}
