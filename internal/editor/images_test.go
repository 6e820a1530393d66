package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"slidecraft-backend/internal/model"
)

// fakeGenerator 记录调用顺序，按提示词脚本返回
type fakeGenerator struct {
	calls []genCall
	fail  map[string]error // 提示词 -> 固定失败
}

type genCall struct {
	prompt string
	width  int
	height int
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, width, height int) (string, string, error) {
	g.calls = append(g.calls, genCall{prompt, width, height})
	if err, ok := g.fail[prompt]; ok {
		return "", "", err
	}
	return "ZmFrZQ==", "fake-model", nil
}

type fakeAssetStore struct {
	saved []*model.ImageAsset
}

func (s *fakeAssetStore) SaveGenerated(ctx context.Context, asset *model.ImageAsset) (string, error) {
	s.saved = append(s.saved, asset)
	return fmt.Sprintf("http://localhost/assets/a%d", len(s.saved)), nil
}

func newTestResolver(gen ImageGenerator, store AssetStore) *ImageResolver {
	return NewImageResolver(gen, store, 0, 0, time.Millisecond)
}

func TestResolveNoPendingImages(t *testing.T) {
	gen := &fakeGenerator{}
	resolver := newTestResolver(gen, nil)

	html := "<html><body><p>no images here</p></body></html>"
	final, stats := resolver.Resolve(context.Background(), html, "sess-1", 2)

	if final != html {
		t.Fatalf("html must be unchanged")
	}
	if stats.ImagesKept != 2 || stats.ImagesGenerated != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("generator must not be called")
	}
}

// 生成请求按文档顺序串行派发
func TestResolveSequentialOrder(t *testing.T) {
	gen := &fakeGenerator{}
	resolver := newTestResolver(gen, nil)

	html := "<html><body>" +
		`<!-- IMAGE_PROMPT: "a red fox" WIDTH: 320 HEIGHT: 240 -->` +
		`<p>mid</p>` +
		`<!-- IMAGE_PROMPT: "a blue bird" WIDTH: 320 HEIGHT: 240 -->` +
		`<!-- IMAGE_PROMPT: "a green frog" WIDTH: 320 HEIGHT: 240 -->` +
		"</body></html>"

	final, stats := resolver.Resolve(context.Background(), html, "sess-1", 0)

	if len(gen.calls) != 3 {
		t.Fatalf("want 3 calls got %d", len(gen.calls))
	}
	wantOrder := []string{"a red fox", "a blue bird", "a green frog"}
	for i, want := range wantOrder {
		if gen.calls[i].prompt != want {
			t.Fatalf("call %d: want %q got %q", i, want, gen.calls[i].prompt)
		}
	}
	if stats.ImagesGenerated != 3 {
		t.Fatalf("want 3 generated got %d", stats.ImagesGenerated)
	}
	if strings.Contains(final, "IMAGE_PROMPT") {
		t.Fatalf("prompt markers must all be replaced:\n%s", final)
	}
	if strings.Count(final, "data:image/png;base64,") != 3 {
		t.Fatalf("inline images missing:\n%s", final)
	}
}

// 尺寸在派发前对齐到16的倍数
func TestResolveNormalizesDimensions(t *testing.T) {
	gen := &fakeGenerator{}
	resolver := newTestResolver(gen, nil)

	html := `<!-- IMAGE_PROMPT: "diagram" WIDTH: 300 HEIGHT: 100 -->`
	final, _ := resolver.Resolve(context.Background(), html, "s", 0)

	if len(gen.calls) != 1 {
		t.Fatalf("want 1 call got %d", len(gen.calls))
	}
	if gen.calls[0].width != 304 || gen.calls[0].height != 128 {
		t.Fatalf("dimensions not normalized: %dx%d", gen.calls[0].width, gen.calls[0].height)
	}
	if !strings.Contains(final, `width="304"`) || !strings.Contains(final, `height="128"`) {
		t.Fatalf("tag must carry normalized dimensions:\n%s", final)
	}
}

// 单图失败降级为占位块，其余图片照常生成
func TestResolveFailureFallsBackToPlaceholder(t *testing.T) {
	gen := &fakeGenerator{fail: map[string]error{"a broken one": errors.New("boom")}}
	resolver := newTestResolver(gen, nil)

	html := `<!-- IMAGE_PROMPT: "a broken one" WIDTH: 320 HEIGHT: 240 -->` +
		`<!-- IMAGE_PROMPT: "a good one" WIDTH: 320 HEIGHT: 240 -->`

	final, stats := resolver.Resolve(context.Background(), html, "s", 0)

	if stats.ImagesGenerated != 1 {
		t.Fatalf("want 1 generated got %d", stats.ImagesGenerated)
	}
	if len(stats.ProcessingErrors) != 1 {
		t.Fatalf("want 1 processing error got %v", stats.ProcessingErrors)
	}
	if !strings.Contains(final, "Image unavailable: a broken one") {
		t.Fatalf("placeholder missing:\n%s", final)
	}
	if strings.Contains(final, "IMAGE_PROMPT") {
		t.Fatalf("raw marker leaked into final html:\n%s", final)
	}
}

// 元数据残留与生成请求混排时，派发顺序仍严格等于文档顺序
func TestResolveMixedMarkersDocumentOrder(t *testing.T) {
	gen := &fakeGenerator{}
	resolver := newTestResolver(gen, nil)

	html := "<html><body>" +
		`<!-- IMAGE_METADATA: "leftover A" ID: "IMG_META_3" WIDTH: 320 HEIGHT: 240 -->` +
		`<!-- IMAGE_PROMPT: "new B" WIDTH: 320 HEIGHT: 240 -->` +
		`<!-- IMAGE_METADATA: "leftover C" ID: "IMG_META_7" WIDTH: 320 HEIGHT: 240 -->` +
		"</body></html>"

	_, stats := resolver.Resolve(context.Background(), html, "s", 0)

	wantOrder := []string{"leftover A", "new B", "leftover C"}
	if len(gen.calls) != len(wantOrder) {
		t.Fatalf("want %d calls got %d", len(wantOrder), len(gen.calls))
	}
	for i, want := range wantOrder {
		if gen.calls[i].prompt != want {
			t.Fatalf("dispatch order not document order: call %d want %q got %q", i, want, gen.calls[i].prompt)
		}
	}
	if stats.ImagesGenerated != 3 {
		t.Fatalf("want 3 generated got %d", stats.ImagesGenerated)
	}
}

// 残留的元数据占位（还原阶段没配上的）也转为生成请求
func TestResolveLeftoverMetadataMarker(t *testing.T) {
	gen := &fakeGenerator{}
	resolver := newTestResolver(gen, nil)

	html := `<!-- IMAGE_METADATA: "an invented chart" ID: "IMG_META_9" WIDTH: 480 HEIGHT: 320 -->`
	final, stats := resolver.Resolve(context.Background(), html, "s", 0)

	if len(gen.calls) != 1 || gen.calls[0].prompt != "an invented chart" {
		t.Fatalf("metadata leftover not dispatched: %+v", gen.calls)
	}
	if stats.ImagesGenerated != 1 {
		t.Fatalf("want 1 generated got %d", stats.ImagesGenerated)
	}
	if strings.Contains(final, "IMAGE_METADATA") {
		t.Fatalf("metadata marker leaked:\n%s", final)
	}
}

// 配置了临时存储时引用URL，不内联base64
func TestResolveStoresAssets(t *testing.T) {
	gen := &fakeGenerator{}
	store := &fakeAssetStore{}
	resolver := newTestResolver(gen, store)

	html := `<!-- IMAGE_PROMPT: "stored image" WIDTH: 320 HEIGHT: 240 -->`
	final, _ := resolver.Resolve(context.Background(), html, "sess-7", 0)

	if len(store.saved) != 1 {
		t.Fatalf("want 1 saved asset got %d", len(store.saved))
	}
	asset := store.saved[0]
	if asset.SessionID != "sess-7" || asset.Prompt != "stored image" {
		t.Fatalf("asset metadata wrong: %+v", asset)
	}
	if !strings.Contains(final, `src="http://localhost/assets/a1"`) {
		t.Fatalf("url not referenced:\n%s", final)
	}
	if strings.Contains(final, "base64") {
		t.Fatalf("base64 must not be inlined when a store is configured:\n%s", final)
	}
}

// 生成失败在重试耗尽前会重试
func TestResolveRetriesGeneration(t *testing.T) {
	gen := &countdownGenerator{failuresLeft: 2}
	resolver := NewImageResolver(gen, nil, 0, 2, time.Millisecond)

	html := `<!-- IMAGE_PROMPT: "flaky" WIDTH: 320 HEIGHT: 240 -->`
	_, stats := resolver.Resolve(context.Background(), html, "s", 0)

	if gen.calls != 3 {
		t.Fatalf("want 3 attempts got %d", gen.calls)
	}
	if stats.ImagesGenerated != 1 {
		t.Fatalf("want success after retries, stats: %+v", stats)
	}
}

type countdownGenerator struct {
	failuresLeft int
	calls        int
}

func (g *countdownGenerator) Generate(ctx context.Context, prompt string, width, height int) (string, string, error) {
	g.calls++
	if g.failuresLeft > 0 {
		g.failuresLeft--
		return "", "", errors.New("temporarily unavailable")
	}
	return "ZmFrZQ==", "fake-model", nil
}

// 中途取消时，尚未处理的占位换成占位块，不把原始注释留在文档里
type cancelingGenerator struct {
	cancel context.CancelFunc
	calls  int
}

func (g *cancelingGenerator) Generate(ctx context.Context, prompt string, width, height int) (string, string, error) {
	g.calls++
	g.cancel()
	return "ZmFrZQ==", "fake-model", nil
}

func TestResolveCancellationReplacesRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &cancelingGenerator{cancel: cancel}
	resolver := NewImageResolver(gen, nil, 50*time.Millisecond, 0, time.Millisecond)

	html := `<!-- IMAGE_PROMPT: "first" WIDTH: 320 HEIGHT: 240 -->` +
		`<!-- IMAGE_PROMPT: "second" WIDTH: 320 HEIGHT: 240 -->` +
		`<!-- IMAGE_PROMPT: "third" WIDTH: 320 HEIGHT: 240 -->`

	final, stats := resolver.Resolve(ctx, html, "s", 0)

	if gen.calls != 1 {
		t.Fatalf("want 1 call before cancellation got %d", gen.calls)
	}
	if stats.ImagesGenerated != 1 {
		t.Fatalf("want 1 generated got %d", stats.ImagesGenerated)
	}
	if len(stats.ProcessingErrors) != 2 {
		t.Fatalf("want 2 processing errors got %v", stats.ProcessingErrors)
	}
	if strings.Contains(final, "IMAGE_PROMPT") {
		t.Fatalf("unprocessed markers must not survive cancellation:\n%s", final)
	}
	if !strings.Contains(final, "Image unavailable: second") || !strings.Contains(final, "Image unavailable: third") {
		t.Fatalf("placeholders missing for canceled images:\n%s", final)
	}
}

func TestAssembleResult(t *testing.T) {
	parsed := &model.EditResult{
		EditedSlide: model.Slide{ID: "s1", Title: "T", HTMLContent: "<html>pre</html>"},
		Changes:     []model.SlideChange{{Section: "title"}},
		Summary:     model.EditSummary{TotalChanges: 1},
	}
	stats := model.ImageProcessingStats{ImagesGenerated: 2, ImagesKept: 1, SessionID: "s"}

	result := AssembleResult(parsed, "<html>final</html>", stats)

	if result.EditedSlide.HTMLContent != "<html>final</html>" {
		t.Fatalf("final html not applied: %q", result.EditedSlide.HTMLContent)
	}
	if result.ImageProcessing == nil || result.ImageProcessing.ImagesGenerated != 2 {
		t.Fatalf("stats not attached: %+v", result.ImageProcessing)
	}
	// 不得反向污染解析结果
	if parsed.EditedSlide.HTMLContent != "<html>pre</html>" {
		t.Fatalf("input mutated: %q", parsed.EditedSlide.HTMLContent)
	}
}
