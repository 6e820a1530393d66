package editor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Content Sanitizer：发送给模型前把内联base64图片换成轻量元数据占位，
// 解析完成后把仍然在场的占位原样换回。纯文本变换，无任何IO

var (
	base64ImgTagRe = regexp.MustCompile(`<img\b[^>]*\bsrc\s*=\s*["']data:image/[^"']+["'][^>]*/?>`)
	altAttrRe      = regexp.MustCompile(`\balt\s*=\s*["']([^"']*)["']`)
	widthAttrRe    = regexp.MustCompile(`\bwidth\s*=\s*["']?(\d+)`)
	heightAttrRe   = regexp.MustCompile(`\bheight\s*=\s*["']?(\d+)`)
)

const (
	defaultImageWidth  = 640
	defaultImageHeight = 480
)

// StrippedImage 被剥离的一张图片：保留标签原文，restore时逐字节还原
type StrippedImage struct {
	Tag         string `json:"tag"`
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// StripResult 剥离结果
type StripResult struct {
	StrippedHTML  string                   `json:"strippedHtml"`
	ImageMap      map[string]StrippedImage `json:"imageMap"`
	ReplacedCount int                      `json:"replacedCount"`
}

// StripImages 把HTML中的内联base64图片替换为元数据占位
// 描述取alt文本，缺省时用通用标签；尺寸取width/height属性，缺省640x480
func StripImages(html string) StripResult {
	imageMap := make(map[string]StrippedImage)
	count := 0

	stripped := base64ImgTagRe.ReplaceAllStringFunc(html, func(tag string) string {
		count++
		id := fmt.Sprintf("IMG_META_%d", count)

		desc := extractAttr(tag, altAttrRe)
		if desc == "" {
			desc = fmt.Sprintf("Slide image %d", count)
		}

		width := extractIntAttr(tag, widthAttrRe, defaultImageWidth)
		height := extractIntAttr(tag, heightAttrRe, defaultImageHeight)

		imageMap[id] = StrippedImage{
			Tag:         tag,
			Description: desc,
			Width:       width,
			Height:      height,
		}

		return FormatMetadataMarker(MetadataMarker{
			Description: desc,
			ID:          id,
			Width:       width,
			Height:      height,
		})
	})

	return StripResult{
		StrippedHTML:  stripped,
		ImageMap:      imageMap,
		ReplacedCount: count,
	}
}

// RestoreImages 把仍然在场的元数据占位换回原始图片标签。
// 被模型删掉的占位自然不会再出现；imageMap中没有的占位保持原样，
// 留给图片处理阶段决定如何处置
func RestoreImages(html string, imageMap map[string]StrippedImage) string {
	if len(imageMap) == 0 {
		return html
	}

	result := html
	for _, match := range FindMetadataMarkers(html) {
		img, ok := imageMap[match.Marker.ID]
		if !ok {
			continue
		}
		result = strings.Replace(result, match.Raw, img.Tag, 1)
	}

	return result
}

// CountKeptImages 统计编辑后仍在场、且能还原的元数据占位数量
func CountKeptImages(html string, imageMap map[string]StrippedImage) int {
	count := 0
	for _, match := range FindMetadataMarkers(html) {
		if _, ok := imageMap[match.Marker.ID]; ok {
			count++
		}
	}
	return count
}

func extractAttr(tag string, re *regexp.Regexp) string {
	if m := re.FindStringSubmatch(tag); len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractIntAttr(tag string, re *regexp.Regexp, fallback int) int {
	if m := re.FindStringSubmatch(tag); len(m) >= 2 {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
