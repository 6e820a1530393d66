package editor

import (
	"errors"
	"testing"

	"slidecraft-backend/internal/model"
)

func testSlide() model.Slide {
	return model.Slide{
		ID:          "slide-1",
		Title:       "Old title",
		Content:     "Old content",
		HTMLContent: "<html><body><h1>Old title</h1></body></html>",
	}
}

func TestParseEditResponseValid(t *testing.T) {
	raw := `{
		"editedTitle": "New title",
		"editedContent": "New content",
		"editedHtmlContent": "<html><body><h1>New title</h1></body></html>",
		"changes": [
			{"section": "title", "shortDescription": "Renamed", "detailedDescription": "Changed the slide title"}
		],
		"improvementAreas": ["clarity"]
	}`

	result, err := ParseEditResponse(raw, testSlide(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EditedSlide.Title != "New title" {
		t.Fatalf("want title %q got %q", "New title", result.EditedSlide.Title)
	}
	if result.EditedSlide.ID != "slide-1" {
		t.Fatalf("slide ID must be preserved, got %q", result.EditedSlide.ID)
	}
	if result.Summary.TotalChanges != 1 {
		t.Fatalf("want 1 change got %d", result.Summary.TotalChanges)
	}
	if len(result.Summary.ImprovementAreas) != 1 || result.Summary.ImprovementAreas[0] != "clarity" {
		t.Fatalf("improvement areas lost: %v", result.Summary.ImprovementAreas)
	}
}

// 模型违反指令包了代码围栏、字符串里还有裸引号，修复链应当救回来
func TestParseEditResponseFencedWithStrayQuote(t *testing.T) {
	raw := "```json\n" +
		`{"editedTitle": "The "Water" Cycle", "editedContent": "C", "editedHtmlContent": "<html><body>x</body></html>"}` +
		"\n```"

	result, err := ParseEditResponse(raw, testSlide(), nil)
	if err != nil {
		t.Fatalf("repair chain failed: %v", err)
	}
	if result.EditedSlide.Title != `The "Water" Cycle` {
		t.Fatalf("want repaired title got %q", result.EditedSlide.Title)
	}
}

func TestParseEditResponseTruncatedHTML(t *testing.T) {
	raw := `{"editedTitle": "T", "editedContent": "C", "editedHtmlContent": "<html><body><h1>T</h1>"}`

	_, err := ParseEditResponse(raw, testSlide(), nil)
	if err == nil {
		t.Fatalf("expected truncation error")
	}
	var te *TruncationError
	if !errors.As(err, &te) {
		t.Fatalf("want TruncationError got %T: %v", err, err)
	}
}

func TestParseEditResponseMissingContentFields(t *testing.T) {
	raw := `{"editedTitle": "Only a title"}`

	_, err := ParseEditResponse(raw, testSlide(), nil)
	if err == nil {
		t.Fatalf("expected format error")
	}
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("want FormatError got %T: %v", err, err)
	}
}

func TestParseEditResponseGarbage(t *testing.T) {
	_, err := ParseEditResponse("I could not process that slide, sorry!", testSlide(), nil)
	if err == nil {
		t.Fatalf("expected format error")
	}
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("want FormatError got %T: %v", err, err)
	}
	if fe.OriginalErr == nil {
		t.Fatalf("FormatError must carry the original parse error")
	}
}

// 模型漏报子字段时用通用占位，不报错
func TestParseEditResponseDefaultDescriptions(t *testing.T) {
	raw := `{
		"editedContent": "C",
		"editedHtmlContent": "<html><body>x</body></html>",
		"changes": [{}, {"section": "objectives"}]
	}`

	result, err := ParseEditResponse(raw, testSlide(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Changes) != 2 {
		t.Fatalf("want 2 changes got %d", len(result.Changes))
	}

	first := result.Changes[0]
	if first.Section != "general" {
		t.Fatalf("want default section %q got %q", "general", first.Section)
	}
	if first.ShortDescription != "Change 1" {
		t.Fatalf("want default short description got %q", first.ShortDescription)
	}
	if first.DetailedDescription != "Content updated based on feedback" {
		t.Fatalf("want default detailed description got %q", first.DetailedDescription)
	}
	if result.Changes[1].ShortDescription != "Change 2" {
		t.Fatalf("want %q got %q", "Change 2", result.Changes[1].ShortDescription)
	}
}

func TestParseEditResponseAffectedSectionsDeduped(t *testing.T) {
	raw := `{
		"editedContent": "C",
		"editedHtmlContent": "<html><body>x</body></html>",
		"changes": [
			{"section": "title", "shortDescription": "a"},
			{"section": "title", "shortDescription": "b"},
			{"section": "objectives", "shortDescription": "c"}
		]
	}`

	result, err := ParseEditResponse(raw, testSlide(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"title", "objectives"}
	if len(result.Summary.AffectedSections) != len(want) {
		t.Fatalf("want sections %v got %v", want, result.Summary.AffectedSections)
	}
	for i, s := range want {
		if result.Summary.AffectedSections[i] != s {
			t.Fatalf("want sections %v got %v", want, result.Summary.AffectedSections)
		}
	}
}

func TestParseEditResponseAppliedComment(t *testing.T) {
	comments := []model.Comment{
		{ID: "c1", SectionType: "Title", Comment: "Make it shorter"},
		{ID: "c2", SectionType: "objectives", Comment: "Add a third objective"},
	}
	raw := `{
		"editedContent": "C",
		"editedHtmlContent": "<html><body>x</body></html>",
		"changes": [{"section": "title", "shortDescription": "Shortened"}]
	}`

	result, err := ParseEditResponse(raw, testSlide(), comments)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 板块匹配不区分大小写
	if result.Changes[0].AppliedComment != "Make it shorter" {
		t.Fatalf("want applied comment got %q", result.Changes[0].AppliedComment)
	}
}

// 缺失字段回落到原始值
func TestParseEditResponseFallbackToOriginal(t *testing.T) {
	raw := `{"editedHtmlContent": "<html><body>new</body></html>"}`

	result, err := ParseEditResponse(raw, testSlide(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EditedSlide.Title != "Old title" {
		t.Fatalf("missing title must fall back, got %q", result.EditedSlide.Title)
	}
	if result.EditedSlide.Content != "Old content" {
		t.Fatalf("missing content must fall back, got %q", result.EditedSlide.Content)
	}
	if result.EditedSlide.HTMLContent != "<html><body>new</body></html>" {
		t.Fatalf("html not applied: %q", result.EditedSlide.HTMLContent)
	}
}

func TestEnsureDefaultArrays(t *testing.T) {
	patched := EnsureDefaultArrays(`{"editedContent": "C"}`)
	keys := TopLevelKeys(patched)
	hasChanges, hasAreas := false, false
	for _, k := range keys {
		switch k {
		case "changes":
			hasChanges = true
		case "improvementAreas":
			hasAreas = true
		}
	}
	if !hasChanges || !hasAreas {
		t.Fatalf("default arrays not injected, keys: %v", keys)
	}

	// 已有字段不得覆盖
	kept := EnsureDefaultArrays(`{"changes": [{"section": "title"}]}`)
	if got := TopLevelKeys(kept); len(got) != 2 {
		t.Fatalf("unexpected keys: %v", got)
	}
}
