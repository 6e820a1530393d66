package editor

import "fmt"

// 编辑管线的错误分类。管线级错误（供应商、格式、截断）直接上抛给调用方；
// 单张图片的生成失败只做记录，不中断整次编辑

// ProviderError 文本模型调用在重试耗尽后仍失败，或遇到不可重试错误
type ProviderError struct {
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("model provider failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// FormatError 模型输出在修复后仍无法按预期结构解析。
// 同时携带原始解析错误与修复后解析错误，便于诊断
type FormatError struct {
	Reason      string
	OriginalErr error
	RepairedErr error
}

func (e *FormatError) Error() string {
	if e.OriginalErr != nil && e.RepairedErr != nil {
		return fmt.Sprintf("model output format invalid: %s (original parse: %v; after repair: %v)",
			e.Reason, e.OriginalErr, e.RepairedErr)
	}
	return fmt.Sprintf("model output format invalid: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.OriginalErr }

// TruncationError 模型返回的HTML不完整（缺少</html>闭合标签）。
// 截断的文档不能展示也不能保存，按硬失败处理
type TruncationError struct {
	Reason string
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("model HTML output truncated: %s", e.Reason)
}

// ImageGenerationError 单张图片生成失败（重试耗尽）。只做记录，
// 对应占位会被替换成可见的占位块
type ImageGenerationError struct {
	Prompt string
	Err    error
}

func (e *ImageGenerationError) Error() string {
	return fmt.Sprintf("image generation failed for %q: %v", e.Prompt, e.Err)
}

func (e *ImageGenerationError) Unwrap() error { return e.Err }
