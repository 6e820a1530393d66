package editor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"slidecraft-backend/internal/model"
	"slidecraft-backend/internal/utils"
	"slidecraft-backend/pkg/logger"
)

// Image Resolution Stage：扫描编辑后的文档，处理两类图片引用。
// 还在场的元数据占位已由Sanitizer还原；生成请求占位逐个串行派发，
// 请求之间固定间隔，迁就外部服务的限流——牺牲时延换取可预期的配额行为。
// 本阶段从不失败：单图失败降级为占位块并记录

// ImageGenerator 图片生成服务
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, width, height int) (imageBase64 string, modelName string, err error)
}

// AssetStore 生成图片的临时存储，保存后返回可取回的URL
type AssetStore interface {
	SaveGenerated(ctx context.Context, asset *model.ImageAsset) (url string, err error)
}

type ImageResolver struct {
	generator      ImageGenerator
	store          AssetStore // 为nil时内联base64
	requestDelay   time.Duration
	maxRetries     int
	initialBackoff time.Duration
}

func NewImageResolver(generator ImageGenerator, store AssetStore, requestDelay time.Duration, maxRetries int, initialBackoff time.Duration) *ImageResolver {
	return &ImageResolver{
		generator:      generator,
		store:          store,
		requestDelay:   requestDelay,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}
}

// Resolve 处理html中的全部图片引用，返回最终HTML与处理统计。
// imagesKept为Sanitizer还原阶段统计的保留数，这里原样带入
func (r *ImageResolver) Resolve(ctx context.Context, html string, sessionID string, imagesKept int) (string, model.ImageProcessingStats) {
	stats := model.ImageProcessingStats{
		ImagesKept: imagesKept,
		SessionID:  sessionID,
	}

	// 没有还原上的元数据占位（模型新造的或map已失配的）转为生成请求
	pending := collectPendingImages(html)
	if len(pending) == 0 {
		return html, stats
	}

	logger.Infof("待生成图片 %d 张，串行派发，间隔 %v", len(pending), r.requestDelay)

	policy := utils.RetryPolicy{
		MaxRetries:     r.maxRetries,
		InitialBackoff: r.initialBackoff,
		// 图片生成对任何失败一视同仁地重试
	}

	result := html
	for i, p := range pending {
		if i > 0 {
			select {
			case <-ctx.Done():
				// 本阶段从不失败：剩余占位一律换成可见占位块，绝不把原始注释留在文档里
				for _, rest := range pending[i:] {
					width, height := NormalizeDimensions(rest.Width, rest.Height)
					result = strings.Replace(result, rest.Raw, fallbackPlaceholder(rest.Description, width, height), 1)
					stats.ProcessingErrors = append(stats.ProcessingErrors,
						(&ImageGenerationError{Prompt: rest.Description, Err: ctx.Err()}).Error())
				}
				return result, stats
			case <-time.After(r.requestDelay):
			}
		}

		width, height := NormalizeDimensions(p.Width, p.Height)

		var imageBase64, modelName string
		err := policy.Do(ctx, "图片生成", func() error {
			var genErr error
			imageBase64, modelName, genErr = r.generator.Generate(ctx, p.Description, width, height)
			return genErr
		})

		if err != nil {
			genErr := &ImageGenerationError{Prompt: p.Description, Err: err}
			logger.Warnf("%v，使用占位块代替", genErr)
			stats.ProcessingErrors = append(stats.ProcessingErrors, genErr.Error())
			result = strings.Replace(result, p.Raw, fallbackPlaceholder(p.Description, width, height), 1)
			continue
		}

		replacement := r.buildImageTag(ctx, sessionID, p.Description, imageBase64, modelName, width, height)
		result = strings.Replace(result, p.Raw, replacement, 1)
		stats.ImagesGenerated++
	}

	return result, stats
}

// pendingImage 一条待生成的图片引用
type pendingImage struct {
	Description string
	Width       int
	Height      int
	Raw         string
	Pos         int
}

// collectPendingImages 收集生成请求：IMAGE_PROMPT占位，以及还原阶段
// 没有还原上的IMAGE_METADATA残留。两类占位按字节偏移合并排序，
// 混排文档的派发顺序仍严格等于文档顺序
func collectPendingImages(html string) []pendingImage {
	var pending []pendingImage
	for _, m := range FindPromptMarkers(html) {
		pending = append(pending, pendingImage{
			Description: m.Marker.Description,
			Width:       m.Marker.Width,
			Height:      m.Marker.Height,
			Raw:         m.Raw,
			Pos:         m.Pos,
		})
	}
	for _, m := range FindMetadataMarkers(html) {
		pending = append(pending, pendingImage{
			Description: m.Marker.Description,
			Width:       m.Marker.Width,
			Height:      m.Marker.Height,
			Raw:         m.Raw,
			Pos:         m.Pos,
		})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Pos < pending[j].Pos })
	return pending
}

// buildImageTag 生成最终的图片标签：配置了临时存储则引用URL，否则内联base64
func (r *ImageResolver) buildImageTag(ctx context.Context, sessionID, desc, imageBase64, modelName string, width, height int) string {
	src := "data:image/png;base64," + imageBase64

	if r.store != nil {
		url, err := r.store.SaveGenerated(ctx, &model.ImageAsset{
			SessionID: sessionID,
			Prompt:    desc,
			Width:     width,
			Height:    height,
			MimeType:  "image/png",
			Data:      imageBase64,
			Model:     modelName,
		})
		if err != nil {
			logger.Warnf("图片入库失败，降级为内联base64: %v", err)
		} else {
			src = url
		}
	}

	return fmt.Sprintf(`<img src="%s" alt="%s" width="%d" height="%d" style="max-width: 100%%; height: auto;">`,
		src, desc, width, height)
}

// fallbackPlaceholder 生成失败后的可见占位块，绝不把原始占位注释留在文档里
func fallbackPlaceholder(desc string, width, height int) string {
	return fmt.Sprintf(`<div style="width: %dpx; height: %dpx; display: flex; align-items: center; justify-content: center; background-color: #f5f5f5; border: 2px dashed #cccccc; color: #999999; font-family: sans-serif; font-size: 14px; text-align: center;">Image unavailable: %s</div>`,
		width, height, desc)
}
