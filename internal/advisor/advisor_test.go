package advisor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"threadpilot/internal/model"
)

// routedModel 按系统提示词区分钩子和发布时间调用
type routedModel struct {
	mu        sync.Mutex
	hook      string
	hookErr   error
	times     string
	timesErr  error
	lastTimes string
}

func (r *routedModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if strings.Contains(input[0].Content, "posting times") {
		r.mu.Lock()
		r.lastTimes = input[1].Content
		r.mu.Unlock()
		if r.timesErr != nil {
			return nil, r.timesErr
		}
		return schema.AssistantMessage(r.times, nil), nil
	}
	if r.hookErr != nil {
		return nil, r.hookErr
	}
	return schema.AssistantMessage(r.hook, nil), nil
}

func (r *routedModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := r.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

const goodTimes = `{"suggestedPostTimes":["2025-03-04T09:00:00Z","2025-03-05T12:30:00Z","2025-03-06T17:00:00Z"],"reasoning":"Weekday peaks."}`

func newAdvisor(t *testing.T, cm *routedModel) (*Advisor, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	a, err := New(context.Background(), cm, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, hook
}

func TestAdviseSuccess(t *testing.T) {
	cm := &routedModel{hook: `{"hook":"Stop scrolling."}`, times: goodTimes}
	a, _ := newAdvisor(t, cm)

	opt, err := a.Advise(context.Background(), "content", model.PlatformTwitter, "")
	if err != nil {
		t.Fatalf("Advise: %v", err)
	}
	if opt.Hook != "Stop scrolling." {
		t.Fatalf("hook = %q", opt.Hook)
	}
	if len(opt.SuggestedPostTimes) != 3 || opt.Reasoning != "Weekday peaks." {
		t.Fatalf("times = %+v", opt)
	}
	if !strings.Contains(cm.lastTimes, "Target audience: "+model.DefaultAudience) {
		t.Fatalf("default audience not used: %q", cm.lastTimes)
	}
}

func TestPostingTimesFallback(t *testing.T) {
	tests := []struct {
		name string
		cm   *routedModel
	}{
		{"provider error", &routedModel{timesErr: errors.New("rate limited")}},
		{"garbage", &routedModel{times: "the best time is whenever"}},
		{"empty", &routedModel{times: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, hook := newAdvisor(t, tt.cm)
			got := a.PostingTimes(context.Background(), "content", model.PlatformLinkedIn, "founders")
			if got.SuggestedPostTimes == nil || len(got.SuggestedPostTimes) != 0 {
				t.Fatalf("times = %#v, want empty non-nil", got.SuggestedPostTimes)
			}
			if got.Reasoning != FallbackReasoning {
				t.Fatalf("reasoning = %q", got.Reasoning)
			}
			if hook.LastEntry() == nil || hook.LastEntry().Level != logrus.WarnLevel {
				t.Fatal("expected a warning log")
			}
		})
	}
}

func TestPostingTimesKeepsISOForms(t *testing.T) {
	tests := []struct {
		name          string
		times         string
		want          []string
		wantReasoning string
	}{
		{
			name:          "rfc3339 and garbage",
			times:         `["2025-03-04T09:00:00Z","next tuesday","2025-03-06T17:00:00+02:00"]`,
			want:          []string{"2025-03-04T09:00:00Z", "2025-03-06T17:00:00+02:00"},
			wantReasoning: "Weekday peaks.",
		},
		{
			name:          "no offset, no seconds, basic offset",
			times:         `["2025-03-04T09:00:00"," 2025-03-05T12:30 ","2025-03-06T17:00:00+0100"]`,
			want:          []string{"2025-03-04T09:00:00", "2025-03-05T12:30", "2025-03-06T17:00:00+0100"},
			wantReasoning: "Weekday peaks.",
		},
		{
			name:          "fractional seconds and space separator",
			times:         `["2025-03-04T09:00:00.000Z","2025-03-05 12:30"]`,
			want:          []string{"2025-03-04T09:00:00.000Z", "2025-03-05 12:30"},
			wantReasoning: "Weekday peaks.",
		},
		{
			name:          "nothing usable",
			times:         `["","soon","9am"]`,
			want:          []string{},
			wantReasoning: FallbackReasoning,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := &routedModel{times: `{"suggestedPostTimes":` + tt.times + `,"reasoning":"Weekday peaks."}`}
			a, _ := newAdvisor(t, cm)
			got := a.PostingTimes(context.Background(), "content", model.PlatformTwitter, "devs")
			if strings.Join(got.SuggestedPostTimes, "|") != strings.Join(tt.want, "|") || len(got.SuggestedPostTimes) != len(tt.want) {
				t.Fatalf("times = %q, want %q", got.SuggestedPostTimes, tt.want)
			}
			if got.Reasoning != tt.wantReasoning {
				t.Fatalf("reasoning = %q, want %q", got.Reasoning, tt.wantReasoning)
			}
		})
	}
}

func TestAdviseHookFailure(t *testing.T) {
	tests := []struct {
		name string
		cm   *routedModel
	}{
		{"provider error", &routedModel{hookErr: errors.New("safety block"), times: goodTimes}},
		{"empty hook", &routedModel{hook: `{"hook":""}`, times: goodTimes}},
		{"unparseable", &routedModel{hook: "no json", times: goodTimes}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAdvisor(t, tt.cm)
			opt, err := a.Advise(context.Background(), "content", model.PlatformTwitter, "")
			if !model.IsGenerationError(err) {
				t.Fatalf("err = %v, want GenerationError", err)
			}
			if opt != nil {
				t.Fatalf("opt = %+v, want nil", opt)
			}
		})
	}
}

func TestAdvisePostingTimesFailureIsNotFatal(t *testing.T) {
	a, _ := newAdvisor(t, &routedModel{hook: `{"hook":"h"}`, timesErr: errors.New("down")})
	opt, err := a.Advise(context.Background(), "content", model.PlatformTwitter, "")
	if err != nil {
		t.Fatalf("Advise: %v", err)
	}
	if opt.Hook != "h" || len(opt.SuggestedPostTimes) != 0 || opt.Reasoning != FallbackReasoning {
		t.Fatalf("opt = %+v", opt)
	}
}
