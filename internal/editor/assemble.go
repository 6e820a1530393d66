package editor

import "slidecraft-backend/internal/model"

// Result Assembler：把解析结果、最终HTML与图片处理统计合并为对外的编辑结果。
// 纯合并，无失败模式——上游错误在到达这里之前必须已经处理完毕

func AssembleResult(parsed *model.EditResult, finalHTML string, stats model.ImageProcessingStats) *model.EditResult {
	result := &model.EditResult{
		EditedSlide: parsed.EditedSlide,
		Changes:     parsed.Changes,
		Summary:     parsed.Summary,
	}
	result.EditedSlide.HTMLContent = finalHTML
	result.ImageProcessing = &stats
	return result
}
