package editor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"slidecraft-backend/internal/model"
)

// Prompt Builder：把幻灯片当前状态、用户评论和课程上下文拼装成发给模型的指令。
// 除时间戳外对相同输入是确定性的

var (
	interTagWhitespaceRe = regexp.MustCompile(`>\s+<`)
	whitespaceRunRe      = regexp.MustCompile(`\s{2,}`)
)

// MinifyHTML 压缩HTML以节省token：折叠空白、去掉标签间空隙，不改变语义
func MinifyHTML(html string) string {
	minified := interTagWhitespaceRe.ReplaceAllString(html, "><")
	minified = whitespaceRunRe.ReplaceAllString(minified, " ")
	return strings.TrimSpace(minified)
}

// BuildEditPrompt 生成编辑指令
func BuildEditPrompt(slide model.Slide, comments []model.Comment, editCtx model.EditContext) string {
	var sb strings.Builder

	sb.WriteString("You are an expert editor of educational slide content. ")
	sb.WriteString("Apply the user's feedback to the slide below with minimal necessary changes, preserving layout and styling.\n\n")

	sb.WriteString("=== CURRENT SLIDE ===\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", slide.Title))
	sb.WriteString(fmt.Sprintf("Content: %s\n", slide.Content))
	if slide.HTMLContent != "" {
		sb.WriteString("HTML:\n")
		sb.WriteString(MinifyHTML(slide.HTMLContent))
		sb.WriteString("\n")
	}

	sb.WriteString("\n=== USER FEEDBACK ===\n")
	for _, c := range comments {
		section := strings.ToUpper(c.SectionType)
		if c.SectionID != "" {
			section = fmt.Sprintf("%s %s", section, c.SectionID)
		}
		sb.WriteString(fmt.Sprintf("• %s (%s): %s\n", section, c.Priority, c.Comment))
	}

	sb.WriteString("\n=== CONTEXT ===\n")
	if editCtx.AgeGroup != "" {
		sb.WriteString(fmt.Sprintf("Age group: %s\n", editCtx.AgeGroup))
	}
	if editCtx.Topic != "" {
		sb.WriteString(fmt.Sprintf("Topic: %s\n", editCtx.Topic))
	}
	sb.WriteString(fmt.Sprintf("Timestamp: %s\n", time.Now().Format(time.RFC3339)))

	contentLanguage := editCtx.Language
	if contentLanguage == "" {
		contentLanguage = "English"
	}
	sb.WriteString("\n=== LANGUAGE RULES ===\n")
	sb.WriteString(fmt.Sprintf("- All user-facing text (headings, paragraphs, labels) must be in %s.\n", contentLanguage))
	sb.WriteString("- HTML ids, CSS class names, alt attributes and image generation prompts must remain in English.\n")
	sb.WriteString("- IMAGE_PROMPT descriptions must be written in English only.\n")

	sb.WriteString("\n=== IMAGE PLACEHOLDERS ===\n")
	sb.WriteString("- Existing images appear as <!-- IMAGE_METADATA: \"description\" ID: \"id\" WIDTH: n HEIGHT: n --> comments. ")
	sb.WriteString("Keep a marker unchanged to keep its image; remove it to discard the image.\n")
	sb.WriteString("- To request a new image, insert <!-- IMAGE_PROMPT: \"english description\" WIDTH: n HEIGHT: n --> where it should appear.\n")

	sb.WriteString("\n=== OUTPUT FORMAT ===\n")
	sb.WriteString("Respond with exactly one JSON object and nothing else. No markdown fences, no commentary.\n")
	sb.WriteString("Keys: editedTitle (string, optional), editedContent (string, optional), editedHtmlContent (string, optional), ")
	sb.WriteString("changes (array of {section, shortDescription, detailedDescription}), improvementAreas (array of strings).\n")
	sb.WriteString("If you return editedHtmlContent it must be the complete document, from the opening doctype to the closing </html> tag. Never truncate it.\n")

	return sb.String()
}
