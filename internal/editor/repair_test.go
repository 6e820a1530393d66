package editor

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"leading whitespace", "  \n```json\n{\"a\": 1}\n```\n", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Fatalf("want %q got %q", tt.want, got)
			}
		})
	}
}

func TestRepairTruncatedJSON(t *testing.T) {
	// 在字段值中途被切断
	truncated := `{"editedTitle": "New title", "editedContent": "some conte`

	repaired, changed := repairTruncatedJSON(truncated)
	if !changed {
		t.Fatalf("expected repair to apply")
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		t.Fatalf("repaired text does not parse: %v\ntext: %s", err, repaired)
	}
	if obj["editedTitle"] != "New title" {
		t.Fatalf("complete field lost during repair: %v", obj)
	}
}

func TestRepairTruncatedJSONNestedArray(t *testing.T) {
	truncated := `{"changes": [{"section": "slide", "shortDescription": "done"}, {"section": "obj`

	repaired, changed := repairTruncatedJSON(truncated)
	if !changed {
		t.Fatalf("expected repair to apply")
	}

	var obj struct {
		Changes []map[string]string `json:"changes"`
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		t.Fatalf("repaired text does not parse: %v\ntext: %s", err, repaired)
	}
	if len(obj.Changes) < 1 || obj.Changes[0]["section"] != "slide" {
		t.Fatalf("complete array entry lost: %+v", obj.Changes)
	}
}

func TestRepairTruncatedJSONLeavesCompleteAlone(t *testing.T) {
	complete := `{"a": "b"}`
	if _, changed := repairTruncatedJSON(complete); changed {
		t.Fatalf("complete JSON must not be modified")
	}
}

func TestRepairEscapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		key  string
		want string
	}{
		{
			"literal newline",
			"{\"a\": \"line1\nline2\"}",
			"a",
			"line1\nline2",
		},
		{
			"literal tab",
			"{\"a\": \"col1\tcol2\"}",
			"a",
			"col1\tcol2",
		},
		{
			"stray inner quote",
			`{"a": "he said "hi" to me"}`,
			"a",
			`he said "hi" to me`,
		},
		{
			"stray backslash",
			`{"a": "100\% sure"}`,
			"a",
			`100\% sure`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired, changed := repairEscapes(tt.in)
			if !changed {
				t.Fatalf("expected repair to apply")
			}

			var obj map[string]string
			if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
				t.Fatalf("repaired text does not parse: %v\ntext: %s", err, repaired)
			}
			if obj[tt.key] != tt.want {
				t.Fatalf("want %q got %q", tt.want, obj[tt.key])
			}
		})
	}
}

func TestRepairEscapesKeepsValidJSON(t *testing.T) {
	valid := `{"a": "properly \"escaped\" already", "b": [1, 2]}`
	repaired, _ := repairEscapes(valid)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		t.Fatalf("valid JSON broken by repair: %v", err)
	}
}

// 修复单调性：修复成功时，截断尾部之前的顶层键一个都不能丢
func TestRepairMonotonicity(t *testing.T) {
	truncated := `{"editedTitle": "T", "editedContent": "C", "editedHtmlContent": "<html></html>", "changes": [{"section": "slide", "shortDescription": "x"`

	repaired, changed := repairTruncatedJSON(truncated)
	if !changed {
		t.Fatalf("expected repair to apply")
	}

	keys := TopLevelKeys(repaired)
	for _, want := range []string{"editedTitle", "editedContent", "editedHtmlContent", "changes"} {
		found := false
		for _, k := range keys {
			if k == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("key %q lost during repair, keys: %v\ntext: %s", want, keys, repaired)
		}
	}
}

func TestIsClosingQuote(t *testing.T) {
	text := `{"a": "x", "b": "y"}`
	// "x"的闭合引号
	idx := strings.Index(text, `x"`) + 1
	if !isClosingQuote(text, idx) {
		t.Fatalf("expected closing quote at %d", idx)
	}
}
