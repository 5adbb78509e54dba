// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// 项目与步骤相关错误
	ErrorResetNotConfirmed = "RESET_NOT_CONFIRMED"
	ErrorStepIncomplete    = "STEP_INCOMPLETE"
	ErrorPrecondition      = "PRECONDITION"

	// 生成相关错误
	ErrorGenerationFailed = "GENERATION_FAILED"
	ErrorGenAINotReady    = "GENAI_NOT_READY"

	// 实体相关错误
	ErrorCharacterNotFound = "CHARACTER_NOT_FOUND"
	ErrorSetNotFound       = "SET_NOT_FOUND"
	ErrorPromptNotFound    = "PROMPT_NOT_FOUND"

	// 视频相关错误
	ErrorModelNotSupported = "MODEL_NOT_SUPPORTED"
	ErrorVideoJobRunning   = "VIDEO_JOB_RUNNING"

	// 本地化相关错误
	ErrorLanguageInvalid = "LANGUAGE_INVALID"
)
