package editor

import (
	"fmt"
	"strings"
	"testing"
)

const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func imgTag(alt string, width, height int) string {
	return fmt.Sprintf(`<img src="data:image/png;base64,%s" alt="%s" width="%d" height="%d">`, tinyPNG, alt, width, height)
}

func TestStripImages(t *testing.T) {
	html := "<html><body>" + imgTag("A red ball", 400, 300) + "<p>hello</p>" + imgTag("", 200, 100) + "</body></html>"

	result := StripImages(html)

	if result.ReplacedCount != 2 {
		t.Fatalf("expected 2 replacements, got %d", result.ReplacedCount)
	}
	if strings.Contains(result.StrippedHTML, "base64,") {
		t.Fatalf("stripped HTML still contains base64 data")
	}

	markers := FindMetadataMarkers(result.StrippedHTML)
	if len(markers) != 2 {
		t.Fatalf("expected 2 metadata markers, got %d", len(markers))
	}
	if markers[0].Marker.Description != "A red ball" {
		t.Fatalf("alt text not used as description: %q", markers[0].Marker.Description)
	}
	if markers[0].Marker.Width != 400 || markers[0].Marker.Height != 300 {
		t.Fatalf("dimensions not carried: %+v", markers[0].Marker)
	}
	// 无alt图片拿到通用描述
	if markers[1].Marker.Description == "" {
		t.Fatalf("expected generic description for image without alt")
	}
	if _, ok := result.ImageMap[markers[0].Marker.ID]; !ok {
		t.Fatalf("image map missing id %s", markers[0].Marker.ID)
	}
}

func TestStripRestoreRoundTrip(t *testing.T) {
	html := "<html><body>" + imgTag("cat", 400, 300) + "<h1>标题</h1>" + imgTag("dog", 640, 480) + "</body></html>"

	result := StripImages(html)
	restored := RestoreImages(result.StrippedHTML, result.ImageMap)

	if restored != html {
		t.Fatalf("round trip is not byte-identical:\nwant %q\ngot  %q", html, restored)
	}
}

func TestRestoreLeavesUnknownMarkers(t *testing.T) {
	// 模型自己造出的占位没有对应原图，restore必须原样保留给图片阶段处理
	marker := FormatMetadataMarker(MetadataMarker{Description: "invented", ID: "IMG_META_99", Width: 256, Height: 256})
	html := "<body>" + marker + "</body>"

	restored := RestoreImages(html, map[string]StrippedImage{})
	if restored != html {
		t.Fatalf("unknown marker was altered: %q", restored)
	}
}

func TestRestoreSkipsRemovedMarkers(t *testing.T) {
	html := "<body>" + imgTag("cat", 400, 300) + "</body>"
	result := StripImages(html)

	// 模拟模型删掉了占位
	edited := strings.Replace(result.StrippedHTML, FindMetadataMarkers(result.StrippedHTML)[0].Raw, "", 1)

	restored := RestoreImages(edited, result.ImageMap)
	if strings.Contains(restored, "base64,") {
		t.Fatalf("removed marker must not be restored")
	}
}

func TestCountKeptImages(t *testing.T) {
	html := "<body>" + imgTag("cat", 400, 300) + imgTag("dog", 200, 100) + "</body>"
	result := StripImages(html)

	if got := CountKeptImages(result.StrippedHTML, result.ImageMap); got != 2 {
		t.Fatalf("expected 2 kept, got %d", got)
	}

	// 删掉一个占位后只剩一个可还原
	first := FindMetadataMarkers(result.StrippedHTML)[0]
	edited := strings.Replace(result.StrippedHTML, first.Raw, "", 1)
	if got := CountKeptImages(edited, result.ImageMap); got != 1 {
		t.Fatalf("expected 1 kept, got %d", got)
	}
}

func TestStripNoImages(t *testing.T) {
	html := "<html><body><p>no images here</p></body></html>"
	result := StripImages(html)

	if result.ReplacedCount != 0 {
		t.Fatalf("expected 0 replacements, got %d", result.ReplacedCount)
	}
	if result.StrippedHTML != html {
		t.Fatalf("HTML without images must pass through unchanged")
	}
}
