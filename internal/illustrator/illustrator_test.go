package illustrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"threadpilot/internal/model"
	"threadpilot/internal/tools"
)

// fakeGenerator 按提示词返回图片，可指定失败的帖子并加入随机延迟
type fakeGenerator struct {
	mu      sync.Mutex
	fail    map[string]bool
	panicOn string
	jitter  bool
	aspects []string
}

func (f *fakeGenerator) GenerateImage(_ context.Context, prompt, aspectRatio string) (string, error) {
	f.mu.Lock()
	f.aspects = append(f.aspects, aspectRatio)
	f.mu.Unlock()

	text := strings.TrimPrefix(prompt, promptPrefix)
	if f.jitter {
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
	}
	if text == f.panicOn {
		panic("boom")
	}
	if f.fail[text] {
		return "", errors.New("safety filter rejected prompt")
	}
	return "data:image/png;base64," + text, nil
}

func newIllustrator(gen tools.ImageGenerator) *Illustrator {
	logger, _ := test.NewNullLogger()
	return New(tools.NewImageTool(gen), logger)
}

func postTexts(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("post-%d", i)
	}
	return texts
}

func TestIllustrateAllSucceed(t *testing.T) {
	gen := &fakeGenerator{jitter: true}
	texts := postTexts(7)

	thread := newIllustrator(gen).Illustrate(context.Background(), texts)
	if len(thread.Posts) != 7 {
		t.Fatalf("posts = %d", len(thread.Posts))
	}
	for i, p := range thread.Posts {
		if p.Text != texts[i] {
			t.Fatalf("post %d text = %q, order not preserved", i, p.Text)
		}
		if p.Image != "data:image/png;base64,"+texts[i] {
			t.Fatalf("post %d got image %q", i, p.Image)
		}
		if p.IsPlaceholder {
			t.Fatalf("post %d flagged as placeholder", i)
		}
		if p.Order != i+1 {
			t.Fatalf("post %d order = %d", i, p.Order)
		}
	}
	if thread.UsedPlaceholders() {
		t.Fatal("usedPlaceholders = true, want false")
	}
	for _, a := range gen.aspects {
		if a != AspectRatio {
			t.Fatalf("aspect = %q", a)
		}
	}
}

func TestIllustratePartialFailure(t *testing.T) {
	texts := postTexts(7)
	gen := &fakeGenerator{jitter: true, fail: map[string]bool{texts[1]: true, texts[4]: true}}

	thread := newIllustrator(gen).Illustrate(context.Background(), texts)
	if !thread.UsedPlaceholders() {
		t.Fatal("usedPlaceholders = false, want true")
	}
	got := thread.PlaceholderIndexes()
	if len(got) != 2 || got[0] != 1 || got[1] != 4 {
		t.Fatalf("placeholder indexes = %v, want [1 4]", got)
	}
	for i, p := range thread.Posts {
		if p.Text != texts[i] {
			t.Fatalf("post %d text = %q", i, p.Text)
		}
		if p.IsPlaceholder && p.Image != model.PlaceholderImage {
			t.Fatalf("post %d placeholder image mismatch", i)
		}
		if !p.IsPlaceholder && p.Image != "data:image/png;base64,"+texts[i] {
			t.Fatalf("post %d image = %q", i, p.Image)
		}
	}
}

func TestIllustrateRecoversPanic(t *testing.T) {
	texts := postTexts(3)
	gen := &fakeGenerator{panicOn: texts[2]}

	thread := newIllustrator(gen).Illustrate(context.Background(), texts)
	if !thread.Posts[2].IsPlaceholder || thread.Posts[0].IsPlaceholder || thread.Posts[1].IsPlaceholder {
		t.Fatalf("unexpected flags: %+v", thread.PlaceholderIndexes())
	}
}

func TestIllustrateNilTool(t *testing.T) {
	logger, _ := test.NewNullLogger()
	thread := New(nil, logger).Illustrate(context.Background(), postTexts(2))
	if len(thread.PlaceholderIndexes()) != 2 {
		t.Fatalf("want every post on the placeholder, got %v", thread.PlaceholderIndexes())
	}
}

func TestPrompt(t *testing.T) {
	if got := Prompt("hello"); got != promptPrefix+"hello" {
		t.Fatalf("Prompt = %q", got)
	}
}
