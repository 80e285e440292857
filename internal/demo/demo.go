// Package demo registers example content-generation handlers so the
// daemon is runnable out of the box. Real deployments register their
// own handlers and skip this package.
package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
	"github.com/elev8tion/agm-platform-sub001/pkg/handler"
	"github.com/elev8tion/agm-platform-sub001/pkg/progress"
)

// Register installs the demo handlers on the registry.
func Register(r *handler.Registry) {
	r.MustRegister("seo.writer", handler.Func(seoWriter))
	r.MustRegister("email.marketer", handler.Func(emailMarketer))
	r.MustRegister("demo.sleep", handler.Func(sleeper))
}

// seoWriter fakes a staged article pipeline.
func seoWriter(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
	topic, ok := params["topic"].(string)
	if !ok || topic == "" {
		return nil, core.NoRetry(fmt.Errorf("missing required param %q", "topic"))
	}

	stages := []string{"Researching", "Outlining", "Drafting", "Polishing"}
	for i, stage := range stages {
		if err := pause(ctx, 100*time.Millisecond); err != nil {
			return nil, err
		}
		tracker.Stage(ctx, stage, float64(i+1)*100/float64(len(stages)+1))
	}

	return map[string]any{
		"title":      fmt.Sprintf("The Complete Guide to %s", topic),
		"word_count": 1200,
	}, nil
}

// emailMarketer fakes a campaign email generator.
func emailMarketer(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
	audience, _ := params["audience"].(string)
	if audience == "" {
		audience = "subscribers"
	}

	tracker.Set(ctx, 30, "drafting subject lines")
	if err := pause(ctx, 100*time.Millisecond); err != nil {
		return nil, err
	}
	tracker.Set(ctx, 80, "writing body copy")
	if err := pause(ctx, 100*time.Millisecond); err != nil {
		return nil, err
	}

	return map[string]any{
		"subject":  fmt.Sprintf("A special offer for our %s", audience),
		"audience": audience,
	}, nil
}

// sleeper is useful for exercising cancellation and reclaim by hand.
func sleeper(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
	seconds, _ := params["seconds"].(float64)
	if seconds <= 0 {
		seconds = 5
	}
	for i := 0; i < int(seconds); i++ {
		if err := pause(ctx, time.Second); err != nil {
			return nil, err
		}
		tracker.Set(ctx, float64(i+1)*100/seconds, "")
	}
	return map[string]any{"slept_seconds": seconds}, nil
}

func pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
