// internal/services/genai_service_test.go
package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCleanJSONString(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"裸JSON", `{"a":1}`, `{"a":1}`},
		{"围栏", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"无语言标记围栏", "```\n[1,2]\n```", "[1,2]"},
		{"前后空白", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := cleanJSONString(tc.input); got != tc.want {
			t.Errorf("%s: 期望 %q 实际 %q", tc.name, tc.want, got)
		}
	}
}

func TestCreateStructuredCompletion(t *testing.T) {
	provider := &fakeProvider{textQueue: []string{"```json\n{\"tone\":\"noir\"}\n```"}}
	genai := newTestGenAIService(provider)

	var out struct {
		Tone string `json:"tone"`
	}
	if err := genai.CreateStructuredCompletion(context.Background(), "p", "s", "m", &out); err != nil {
		t.Fatalf("结构化调用失败: %v", err)
	}
	if out.Tone != "noir" {
		t.Errorf("解析结果错误: %+v", out)
	}

	// 系统提示应附带 JSON 约束，并开启 JSON 模式
	req := provider.requests[0]
	if !req.JSONMode {
		t.Error("结构化调用应开启 JSON 模式")
	}
	if !strings.Contains(req.SystemPrompt, "valid JSON format") {
		t.Error("系统提示应包含 JSON 输出约束")
	}
}

func TestAnalyzeScript(t *testing.T) {
	provider := &fakeProvider{textQueue: []string{
		`{"tone":"Sci-fi","characters":["Mara","Juno"],"locations":["Lab"]}`,
	}}
	genai := newTestGenAIService(provider)

	analysis, err := genai.AnalyzeScript(context.Background(), "INT. LAB")
	if err != nil {
		t.Fatalf("剧本分析失败: %v", err)
	}
	if analysis.Tone != "Sci-fi" || len(analysis.Characters) != 2 || len(analysis.Locations) != 1 {
		t.Errorf("分析结果错误: %+v", analysis)
	}
	if provider.requests[0].Model != extractionModel {
		t.Errorf("剧本分析应使用抽取模型，实际为 %s", provider.requests[0].Model)
	}
}

func TestGenerateCastDetailsFillsDefaults(t *testing.T) {
	provider := &fakeProvider{textQueue: []string{
		`[{"name":"Mara","role":"Hero","appearance":"tall","personality":"stoic","description":"lead"},
		  {"name":"Drone","role":"","appearance":"","personality":"","description":""}]`,
	}}
	genai := newTestGenAIService(provider)

	cast, err := genai.GenerateCastDetails(context.Background(), "script")
	if err != nil {
		t.Fatalf("角色生成失败: %v", err)
	}
	if len(cast) != 2 {
		t.Fatalf("应生成 2 个角色，实际 %d", len(cast))
	}
	if !strings.HasPrefix(cast[0].ID, "auto_char_") {
		t.Errorf("自动生成的角色应带 auto_char_ 前缀，实际 %s", cast[0].ID)
	}
	if cast[1].Role != "Supporting" || cast[1].Appearance != "Standard" || cast[1].Personality != "Neutral" {
		t.Errorf("缺失字段应填充默认值，实际 %+v", cast[1])
	}
}

func TestGenerateSceneBreakdownUsesReasoningModel(t *testing.T) {
	provider := &fakeProvider{textQueue: []string{
		`[{"id":7,"location":"Lab","action":"open","characters":["Mara"],"duration":"5s","visualNotes":"wide"}]`,
	}}
	genai := newTestGenAIService(provider)

	scenes, err := genai.GenerateSceneBreakdown(context.Background(), "script", "3 min", 23)
	if err != nil {
		t.Fatalf("分镜生成失败: %v", err)
	}
	if len(scenes) != 1 || scenes[0].Location != "Lab" {
		t.Errorf("分镜解析错误: %+v", scenes)
	}

	req := provider.requests[0]
	if req.Model != reasoningModel {
		t.Errorf("分镜应使用推理模型，实际为 %s", req.Model)
	}
	if !strings.Contains(req.Prompt, "approximately 23 distinct scenes") {
		t.Error("提示词应包含目标镜头数约束")
	}
	if !strings.Contains(req.Prompt, "3 min") {
		t.Error("提示词应包含目标时长")
	}
}

func TestNotReadyService(t *testing.T) {
	genai := NewEmptyGenAIService()

	if genai.IsReady() {
		t.Error("空服务不应就绪")
	}
	if _, err := genai.AnalyzeScript(context.Background(), "x"); !errors.Is(err, ErrGenAINotReady) {
		t.Errorf("未就绪服务应返回 ErrGenAINotReady，实际 %v", err)
	}
}

func TestMalformedResponse(t *testing.T) {
	provider := &fakeProvider{textQueue: []string{"definitely not json"}}
	genai := newTestGenAIService(provider)

	if _, err := genai.AnalyzeScript(context.Background(), "x"); err == nil {
		t.Error("无法解析的响应应返回错误")
	}
}
