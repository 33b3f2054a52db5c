package clicks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeDedup struct {
	seen map[string]bool
	err  error
	keys []string
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: map[string]bool{}}
}

func (f *fakeDedup) SetIfAbsent(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.keys = append(f.keys, key)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

const humanAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

func TestIsBot(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		bot       bool
	}{
		{"desktop browser", humanAgent, false},
		{"mobile browser", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", false},
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", true},
		{"curl", "curl/8.4.0", true},
		{"wget", "Wget/1.21", true},
		{"python requests", "python-requests/2.31.0", true},
		{"generic spider", "SomeSpider/1.0", true},
		{"messenger preview", "facebookexternalhit/1.1", true},
		{"absent user agent", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.bot, IsBot(tt.userAgent))
		})
	}
}

func TestShouldCount(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 15, 30, 0, 0, time.UTC)

	t.Run("first click counts, repeat does not", func(t *testing.T) {
		tracker := NewTracker(newFakeDedup())
		assert.True(t, tracker.ShouldCount(ctx, "abc", "1.2.3.4", humanAgent, now))
		assert.False(t, tracker.ShouldCount(ctx, "abc", "1.2.3.4", humanAgent, now.Add(10*time.Minute)))
	})

	t.Run("next hour bucket counts again", func(t *testing.T) {
		tracker := NewTracker(newFakeDedup())
		assert.True(t, tracker.ShouldCount(ctx, "abc", "1.2.3.4", humanAgent, now))
		assert.True(t, tracker.ShouldCount(ctx, "abc", "1.2.3.4", humanAgent, now.Add(time.Hour)))
	})

	t.Run("different ip counts separately", func(t *testing.T) {
		tracker := NewTracker(newFakeDedup())
		assert.True(t, tracker.ShouldCount(ctx, "abc", "1.2.3.4", humanAgent, now))
		assert.True(t, tracker.ShouldCount(ctx, "abc", "5.6.7.8", humanAgent, now))
	})

	t.Run("bot never counts and never reaches the store", func(t *testing.T) {
		store := newFakeDedup()
		tracker := NewTracker(store)
		assert.False(t, tracker.ShouldCount(ctx, "abc", "1.2.3.4", "Googlebot/2.1", now))
		assert.Empty(t, store.keys)
	})

	t.Run("store error fails open", func(t *testing.T) {
		store := newFakeDedup()
		store.err = errors.New("connection refused")
		tracker := NewTracker(store)
		assert.True(t, tracker.ShouldCount(ctx, "abc", "1.2.3.4", humanAgent, now))
	})

	t.Run("nil tracker counts humans", func(t *testing.T) {
		var tracker *Tracker
		assert.True(t, tracker.ShouldCount(ctx, "abc", "1.2.3.4", humanAgent, now))
		assert.False(t, tracker.ShouldCount(ctx, "abc", "1.2.3.4", "", now))
	})

	t.Run("dedup key uses hour bucket", func(t *testing.T) {
		store := newFakeDedup()
		tracker := NewTracker(store)
		tracker.ShouldCount(ctx, "abc", "1.2.3.4", humanAgent, now)
		assert.Equal(t, []string{"dedup:abc:1.2.3.4:2026082915"}, store.keys)
	})
}
