package domain_test

import (
	"context"
	"testing"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestMergeHooks(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnTransition: func(context.Context, *domain.TransitionEvent) { calls = append(calls, "a.transition") },
	}
	b := domain.LifecycleHooks{
		OnTransition: func(context.Context, *domain.TransitionEvent) { calls = append(calls, "b.transition") },
		OnFatal:      func(context.Context, *domain.TransitionEvent) { calls = append(calls, "b.fatal") },
	}

	merged := domain.MergeHooks(a, domain.LifecycleHooks{}, b)
	assert.Nil(t, merged.OnRetry)

	merged.OnTransition(context.Background(), &domain.TransitionEvent{})
	merged.OnFatal(context.Background(), &domain.TransitionEvent{})
	assert.Equal(t, []string{"a.transition", "b.transition", "b.fatal"}, calls)
}
