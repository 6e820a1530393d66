package editor

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// 图片占位注释的微格式。语法只存在于本文件的正则与格式化函数中，
// 其余代码一律通过这里的解析/生成接口访问
//
//	<!-- IMAGE_METADATA: "描述" ID: "id" WIDTH: n HEIGHT: n -->   已有图片的占位
//	<!-- IMAGE_PROMPT: "描述" WIDTH: n HEIGHT: n -->              请求生成新图片

const (
	// 图片尺寸约束：16的倍数，范围[128, 1536]
	dimensionStep = 16
	dimensionMin  = 128
	dimensionMax  = 1536
)

var (
	metadataMarkerRe = regexp.MustCompile(`<!--\s*IMAGE_METADATA:\s*"([^"]*)"\s*ID:\s*"([^"]*)"\s*WIDTH:\s*(\d+)\s*HEIGHT:\s*(\d+)\s*-->`)
	promptMarkerRe   = regexp.MustCompile(`<!--\s*IMAGE_PROMPT:\s*"([^"]*)"\s*WIDTH:\s*(\d+)\s*HEIGHT:\s*(\d+)\s*-->`)
)

// MetadataMarker 已有图片被剥离后留下的元数据占位
type MetadataMarker struct {
	Description string
	ID          string
	Width       int
	Height      int
}

// PromptMarker 新图片生成请求占位，Description要求为英文
type PromptMarker struct {
	Description string
	Width       int
	Height      int
}

// MetadataMatch 文档中的一次占位匹配，Raw为原文，用于原位替换；
// Pos为匹配起始的字节偏移
type MetadataMatch struct {
	Marker MetadataMarker
	Raw    string
	Pos    int
}

type PromptMatch struct {
	Marker PromptMarker
	Raw    string
	Pos    int
}

func FormatMetadataMarker(m MetadataMarker) string {
	return fmt.Sprintf(`<!-- IMAGE_METADATA: "%s" ID: "%s" WIDTH: %d HEIGHT: %d -->`,
		m.Description, m.ID, m.Width, m.Height)
}

func FormatPromptMarker(m PromptMarker) string {
	return fmt.Sprintf(`<!-- IMAGE_PROMPT: "%s" WIDTH: %d HEIGHT: %d -->`,
		m.Description, m.Width, m.Height)
}

// FindMetadataMarkers 按文档顺序返回所有元数据占位
func FindMetadataMarkers(html string) []MetadataMatch {
	var result []MetadataMatch
	for _, idx := range metadataMarkerRe.FindAllStringSubmatchIndex(html, -1) {
		result = append(result, MetadataMatch{
			Marker: MetadataMarker{
				Description: html[idx[2]:idx[3]],
				ID:          html[idx[4]:idx[5]],
				Width:       atoiOr(html[idx[6]:idx[7]], defaultImageWidth),
				Height:      atoiOr(html[idx[8]:idx[9]], defaultImageHeight),
			},
			Raw: html[idx[0]:idx[1]],
			Pos: idx[0],
		})
	}
	return result
}

// FindPromptMarkers 按文档顺序返回所有生成请求占位
func FindPromptMarkers(html string) []PromptMatch {
	var result []PromptMatch
	for _, idx := range promptMarkerRe.FindAllStringSubmatchIndex(html, -1) {
		result = append(result, PromptMatch{
			Marker: PromptMarker{
				Description: html[idx[2]:idx[3]],
				Width:       atoiOr(html[idx[4]:idx[5]], defaultImageWidth),
				Height:      atoiOr(html[idx[6]:idx[7]], defaultImageHeight),
			},
			Raw: html[idx[0]:idx[1]],
			Pos: idx[0],
		})
	}
	return result
}

// NormalizeDimension 将尺寸修正为合法值：就近取16的倍数，再夹到[128,1536]
// 对已合法的输入是恒等变换
func NormalizeDimension(v int) int {
	rounded := int(math.Round(float64(v)/dimensionStep)) * dimensionStep
	if rounded < dimensionMin {
		return dimensionMin
	}
	if rounded > dimensionMax {
		return dimensionMax
	}
	return rounded
}

func NormalizeDimensions(width, height int) (int, int) {
	return NormalizeDimension(width), NormalizeDimension(height)
}

// atoiOr 解析失败（含超出int范围的数字串）时返回fallback
func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
