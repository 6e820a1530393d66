package editor

import (
	"encoding/json"
	"fmt"
	"strings"

	"slidecraft-backend/internal/model"
	"slidecraft-backend/pkg/logger"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Response Parser & Repairer：把模型的文本输出解析成EditResult。
// 先严格解析，失败后按修复策略链逐步修复重试；
// 修好也救不回来的输出带着前后两次解析错误抛FormatError

// modelEditResponse 模型输出的JSON结构
type modelEditResponse struct {
	EditedTitle       string        `json:"editedTitle"`
	EditedContent     string        `json:"editedContent"`
	EditedHTMLContent string        `json:"editedHtmlContent"`
	Changes           []modelChange `json:"changes"`
	ImprovementAreas  []string      `json:"improvementAreas"`
}

type modelChange struct {
	Section             string `json:"section"`
	ShortDescription    string `json:"shortDescription"`
	DetailedDescription string `json:"detailedDescription"`
}

// ParseEditResponse 解析模型输出并构造编辑结果（图片处理前）
func ParseEditResponse(raw string, original model.Slide, comments []model.Comment) (*model.EditResult, error) {
	text := EnsureDefaultArrays(StripCodeFence(raw))

	resp, err := parseWithRepair(text)
	if err != nil {
		return nil, err
	}

	// 必要字段校验：editedContent 与 editedHtmlContent 至少要有一个
	if resp.EditedContent == "" && resp.EditedHTMLContent == "" {
		return nil, &FormatError{Reason: "response contains neither editedContent nor editedHtmlContent"}
	}

	// 截断检查：HTML必须闭合到</html>，残缺文档绝不能当部分成功放过
	if resp.EditedHTMLContent != "" && !strings.Contains(strings.ToLower(resp.EditedHTMLContent), "</html>") {
		return nil, &TruncationError{Reason: "editedHtmlContent is missing the closing </html> tag"}
	}

	return buildEditResult(resp, original, comments), nil
}

// parseWithRepair 严格解析，失败后沿修复策略链累积修复并逐次重试
func parseWithRepair(text string) (*modelEditResponse, error) {
	var resp modelEditResponse

	originalErr := json.Unmarshal([]byte(text), &resp)
	if originalErr == nil {
		return &resp, nil
	}

	repaired := text
	var repairedErr error = originalErr
	for _, strategy := range repairStrategies {
		next, changed := strategy.apply(repaired)
		if !changed {
			continue
		}
		repaired = next
		logger.Debugf("JSON修复策略 %s 已应用，重试解析", strategy.name)

		resp = modelEditResponse{}
		repairedErr = json.Unmarshal([]byte(repaired), &resp)
		if repairedErr == nil {
			logger.Debugf("修复后解析成功，顶层键: %v", TopLevelKeys(repaired))
			return &resp, nil
		}
	}

	return nil, &FormatError{
		Reason:      "response is not valid JSON even after repair",
		OriginalErr: originalErr,
		RepairedErr: repairedErr,
	}
}

// buildEditResult 把模型自报的修改清单转成结构化结果。
// 缺失的子字段给通用占位而不是报错，宽松策略可能掩盖模型错误，记一条告警
func buildEditResult(resp *modelEditResponse, original model.Slide, comments []model.Comment) *model.EditResult {
	edited := model.Slide{
		ID:          original.ID,
		Title:       original.Title,
		Content:     original.Content,
		HTMLContent: original.HTMLContent,
	}
	if resp.EditedTitle != "" {
		edited.Title = resp.EditedTitle
	}
	if resp.EditedContent != "" {
		edited.Content = resp.EditedContent
	}
	if resp.EditedHTMLContent != "" {
		edited.HTMLContent = resp.EditedHTMLContent
	}

	if len(resp.Changes) == 0 {
		logger.Warnf("模型未报告任何修改记录，使用通用占位描述")
	}

	changes := make([]model.SlideChange, 0, len(resp.Changes))
	sectionSeen := make(map[string]bool)
	var sections []string
	for i, mc := range resp.Changes {
		section := mc.Section
		if section == "" {
			section = "general"
		}
		short := mc.ShortDescription
		if short == "" {
			short = fmt.Sprintf("Change %d", i+1)
		}
		detailed := mc.DetailedDescription
		if detailed == "" {
			detailed = "Content updated based on feedback"
		}

		changes = append(changes, model.SlideChange{
			Section:             section,
			ShortDescription:    short,
			DetailedDescription: detailed,
			AppliedComment:      matchComment(section, comments),
		})

		if !sectionSeen[section] {
			sectionSeen[section] = true
			sections = append(sections, section)
		}
	}

	return &model.EditResult{
		EditedSlide: edited,
		Changes:     changes,
		Summary: model.EditSummary{
			TotalChanges:     len(changes),
			AffectedSections: sections,
			ImprovementAreas: resp.ImprovementAreas,
		},
	}
}

// matchComment 找到作用于同一板块的评论文本，作为修改记录的出处
func matchComment(section string, comments []model.Comment) string {
	for _, c := range comments {
		if strings.EqualFold(c.SectionType, section) {
			return c.Comment
		}
	}
	return ""
}

// TopLevelKeys 返回JSON文本的顶层键（诊断与测试用）
func TopLevelKeys(text string) []string {
	if !gjson.Valid(text) {
		return nil
	}
	var keys []string
	gjson.Parse(text).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

// EnsureDefaultArrays 在原始JSON文本上补齐缺失的数组字段，返回补齐后的文本。
// 解析前调用可避免下游到处判空
func EnsureDefaultArrays(text string) string {
	if !gjson.Valid(text) {
		return text
	}
	result := text
	if !gjson.Get(result, "changes").Exists() {
		if patched, err := sjson.SetRaw(result, "changes", "[]"); err == nil {
			result = patched
		}
	}
	if !gjson.Get(result, "improvementAreas").Exists() {
		if patched, err := sjson.SetRaw(result, "improvementAreas", "[]"); err == nil {
			result = patched
		}
	}
	return result
}
