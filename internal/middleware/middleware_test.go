package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/internal/keys"
	"github.com/m-orlov/tgsentinel/internal/storage"
	"github.com/m-orlov/tgsentinel/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBot(t *testing.T) *tele.Bot {
	t.Helper()

	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)

	return b
}

func textContext(t *testing.T, b *tele.Bot, userID, chatID int64, text string) tele.Context {
	t.Helper()

	return b.NewContext(tele.Update{
		Message: &tele.Message{
			Sender: &tele.User{ID: userID, Username: "tester", FirstName: "Test"},
			Chat:   &tele.Chat{ID: chatID},
			Text:   text,
		},
	})
}

// passProbe returns a terminal handler and a pointer to its call counter.
func passProbe() (tele.HandlerFunc, *int) {
	calls := 0

	return func(tele.Context) error {
		calls++
		return nil
	}, &calls
}

// recordingBlocker captures the last auto-block request.
type recordingBlocker struct {
	userID   int64
	username string
}

func (b *recordingBlocker) Block(_ context.Context, userID int64, username string) error {
	b.userID = userID
	b.username = username
	return nil
}

type failingBlocklist struct{}

func (failingBlocklist) IsBlocked(context.Context, int64) (bool, error) {
	return false, &storage.BackendError{Op: "is_blocked", Err: errors.New("down")}
}
func (failingBlocklist) Block(context.Context, int64) error   { return nil }
func (failingBlocklist) Unblock(context.Context, int64) error { return nil }
func (failingBlocklist) Blocked(context.Context) (map[int64]struct{}, error) {
	return nil, nil
}

func TestBlockMiddleware(t *testing.T) {
	b := testBot(t)
	ctx := context.Background()

	t.Run("blocked sender is dropped silently", func(t *testing.T) {
		blocklist := memory.NewBlocklist()
		require.NoError(t, blocklist.Block(ctx, 42))

		next, calls := passProbe()
		c := textContext(t, b, 42, 100, "hi")

		err := NewBlockMiddleware(blocklist, testLogger()).Handle(next)(c)

		require.NoError(t, err)
		assert.Equal(t, 0, *calls)
		assert.True(t, Flag(c, BlockedFlag))
	})

	t.Run("unblocked sender passes", func(t *testing.T) {
		blocklist := memory.NewBlocklist()

		next, calls := passProbe()
		c := textContext(t, b, 42, 100, "hi")

		err := NewBlockMiddleware(blocklist, testLogger()).Handle(next)(c)

		require.NoError(t, err)
		assert.Equal(t, 1, *calls)
		assert.False(t, Flag(c, BlockedFlag))
	})

	t.Run("backend failure propagates", func(t *testing.T) {
		next, calls := passProbe()
		c := textContext(t, b, 42, 100, "hi")

		err := NewBlockMiddleware(failingBlocklist{}, testLogger()).Handle(next)(c)

		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrBackendUnavailable)
		assert.Equal(t, 0, *calls)
	})
}

func TestAuthMiddleware(t *testing.T) {
	b := testBot(t)
	ctx := context.Background()

	t.Run("first-time sender is registered and passes", func(t *testing.T) {
		users := memory.NewUserRepo()
		next, calls := passProbe()
		c := textContext(t, b, 7, 100, "hi")

		mw := NewAuthMiddleware(users, nil, nil, false, testLogger())
		require.NoError(t, mw.Handle(next)(c))

		assert.Equal(t, 1, *calls)

		registered, err := users.IsRegistered(ctx, 7)
		require.NoError(t, err)
		assert.True(t, registered)

		rec, err := users.Get(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "tester", rec.Attributes["username"])

		uc, ok := c.Get(UserContextKey).(*UserContext)
		require.True(t, ok)
		assert.True(t, uc.Registered)
	})

	t.Run("require-registered vetoes unknown sender without creating it", func(t *testing.T) {
		users := memory.NewUserRepo()
		next, calls := passProbe()
		c := textContext(t, b, 7, 100, "hi")

		mw := NewAuthMiddleware(users, nil, nil, true, testLogger())
		require.NoError(t, mw.Handle(next)(c))

		assert.Equal(t, 0, *calls)
		assert.True(t, Flag(c, VetoedFlag))

		registered, err := users.IsRegistered(ctx, 7)
		require.NoError(t, err)
		assert.False(t, registered)
	})

	t.Run("require-registered via per-handler policy", func(t *testing.T) {
		users := memory.NewUserRepo()
		policies := NewPolicyRegistry()
		policies.Set("admin", Policy{RequireRegistered: true})

		next, calls := passProbe()
		c := textContext(t, b, 7, 100, "hi")
		c.Set(HandlerNameKey, "admin")

		mw := NewAuthMiddleware(users, policies, nil, false, testLogger())
		require.NoError(t, mw.Handle(next)(c))

		assert.Equal(t, 0, *calls)
		assert.True(t, Flag(c, VetoedFlag))
	})

	t.Run("resolver returning nil vetoes", func(t *testing.T) {
		users := memory.NewUserRepo()
		resolve := func(context.Context, *tele.User) (*UserContext, error) {
			return nil, nil
		}

		next, calls := passProbe()
		c := textContext(t, b, 7, 100, "hi")

		mw := NewAuthMiddleware(users, nil, resolve, false, testLogger())
		require.NoError(t, mw.Handle(next)(c))

		assert.Equal(t, 0, *calls)
		assert.True(t, Flag(c, VetoedFlag))
	})

	t.Run("bot sender is vetoed", func(t *testing.T) {
		users := memory.NewUserRepo()
		next, calls := passProbe()
		c := b.NewContext(tele.Update{
			Message: &tele.Message{
				Sender: &tele.User{ID: 9, IsBot: true},
				Chat:   &tele.Chat{ID: 100},
				Text:   "hi",
			},
		})

		mw := NewAuthMiddleware(users, nil, nil, false, testLogger())
		require.NoError(t, mw.Handle(next)(c))

		assert.Equal(t, 0, *calls)
		assert.True(t, Flag(c, VetoedFlag))
	})
}

func TestDebounceMiddleware(t *testing.T) {
	b := testBot(t)
	builder := keys.NewBuilder("test")

	t.Run("identical payload within window is suppressed", func(t *testing.T) {
		deb := memory.NewDebouncer()
		mw := NewDebounceMiddleware(deb, builder, nil, time.Second, testLogger())

		next, calls := passProbe()
		h := mw.Handle(next)

		first := textContext(t, b, 7, 100, "same")
		require.NoError(t, h(first))
		assert.False(t, Flag(first, DebouncedFlag))

		second := textContext(t, b, 7, 100, "same")
		require.NoError(t, h(second))
		assert.True(t, Flag(second, DebouncedFlag))

		assert.Equal(t, 1, *calls)
	})

	t.Run("different payload passes", func(t *testing.T) {
		deb := memory.NewDebouncer()
		mw := NewDebounceMiddleware(deb, builder, nil, time.Second, testLogger())

		next, calls := passProbe()
		h := mw.Handle(next)

		require.NoError(t, h(textContext(t, b, 7, 100, "one")))
		require.NoError(t, h(textContext(t, b, 7, 100, "two")))

		assert.Equal(t, 2, *calls)
	})

	t.Run("different senders do not collide", func(t *testing.T) {
		deb := memory.NewDebouncer()
		mw := NewDebounceMiddleware(deb, builder, nil, time.Second, testLogger())

		next, calls := passProbe()
		h := mw.Handle(next)

		require.NoError(t, h(textContext(t, b, 7, 100, "same")))
		require.NoError(t, h(textContext(t, b, 8, 100, "same")))

		assert.Equal(t, 2, *calls)
	})

	t.Run("skip policy bypasses the stage", func(t *testing.T) {
		deb := memory.NewDebouncer()
		policies := NewPolicyRegistry()
		policies.Set("spammy", Policy{SkipDebounce: true})

		mw := NewDebounceMiddleware(deb, builder, policies, time.Second, testLogger())
		next, calls := passProbe()
		h := mw.Handle(next)

		for i := 0; i < 3; i++ {
			c := textContext(t, b, 7, 100, "same")
			c.Set(HandlerNameKey, "spammy")
			require.NoError(t, h(c))
		}

		assert.Equal(t, 3, *calls)
	})

	t.Run("zero window disables the stage", func(t *testing.T) {
		deb := memory.NewDebouncer()
		mw := NewDebounceMiddleware(deb, builder, nil, 0, testLogger())

		next, calls := passProbe()
		h := mw.Handle(next)

		require.NoError(t, h(textContext(t, b, 7, 100, "same")))
		require.NoError(t, h(textContext(t, b, 7, 100, "same")))

		assert.Equal(t, 2, *calls)
	})
}

func TestThrottleMiddleware(t *testing.T) {
	b := testBot(t)
	builder := keys.NewBuilder("test")

	t.Run("denies after the limit and sets the flag", func(t *testing.T) {
		limiter := memory.NewRateLimiter()
		mw := NewThrottleMiddleware(limiter, builder, nil, 2, time.Minute, nil, nil, testLogger())

		next, calls := passProbe()
		h := mw.Handle(next)

		for i := 0; i < 2; i++ {
			c := textContext(t, b, 7, 100, "hi")
			require.NoError(t, h(c))
			assert.False(t, Flag(c, RateLimitedFlag))
		}

		denied := textContext(t, b, 7, 100, "hi")
		require.NoError(t, h(denied))
		assert.True(t, Flag(denied, RateLimitedFlag))
		assert.Equal(t, 2, *calls)
	})

	t.Run("rate-limited hook is invoked with retry-after", func(t *testing.T) {
		limiter := memory.NewRateLimiter()

		var gotRetry time.Duration
		hook := func(_ context.Context, _ tele.Context, retryAfter time.Duration) error {
			gotRetry = retryAfter
			return nil
		}

		mw := NewThrottleMiddleware(limiter, builder, nil, 1, time.Minute, hook, nil, testLogger())
		h := mw.Handle(func(tele.Context) error { return nil })

		require.NoError(t, h(textContext(t, b, 7, 100, "hi")))
		require.NoError(t, h(textContext(t, b, 7, 100, "hi")))

		assert.Greater(t, gotRetry, time.Duration(0))
		assert.LessOrEqual(t, gotRetry, time.Minute)
	})

	t.Run("panicking hook does not change the denial", func(t *testing.T) {
		limiter := memory.NewRateLimiter()
		hook := func(context.Context, tele.Context, time.Duration) error {
			panic("boom")
		}

		mw := NewThrottleMiddleware(limiter, builder, nil, 1, time.Minute, hook, nil, testLogger())
		next, calls := passProbe()
		h := mw.Handle(next)

		require.NoError(t, h(textContext(t, b, 7, 100, "hi")))

		denied := textContext(t, b, 7, 100, "hi")
		require.NoError(t, h(denied))
		assert.True(t, Flag(denied, RateLimitedFlag))
		assert.Equal(t, 1, *calls)
	})

	t.Run("auto-block reports the offender with their username", func(t *testing.T) {
		limiter := memory.NewRateLimiter()
		blocker := &recordingBlocker{}

		mw := NewThrottleMiddleware(limiter, builder, nil, 1, time.Minute, nil, blocker, testLogger())
		h := mw.Handle(func(tele.Context) error { return nil })

		require.NoError(t, h(textContext(t, b, 7, 100, "hi")))
		require.NoError(t, h(textContext(t, b, 7, 100, "hi")))

		assert.Equal(t, int64(7), blocker.userID)
		assert.Equal(t, "tester", blocker.username)
	})

	t.Run("policy override changes the limit", func(t *testing.T) {
		limiter := memory.NewRateLimiter()
		policies := NewPolicyRegistry()
		policies.Set("search", Policy{RateLimit: 1})

		mw := NewThrottleMiddleware(limiter, builder, policies, 10, time.Minute, nil, nil, testLogger())
		next, calls := passProbe()
		h := mw.Handle(next)

		first := textContext(t, b, 7, 100, "hi")
		first.Set(HandlerNameKey, "search")
		require.NoError(t, h(first))

		second := textContext(t, b, 7, 100, "hi")
		second.Set(HandlerNameKey, "search")
		require.NoError(t, h(second))

		assert.True(t, Flag(second, RateLimitedFlag))
		assert.Equal(t, 1, *calls)
	})

	t.Run("skip policy bypasses the stage", func(t *testing.T) {
		limiter := memory.NewRateLimiter()
		policies := NewPolicyRegistry()
		policies.Set("health", Policy{SkipThrottle: true})

		mw := NewThrottleMiddleware(limiter, builder, policies, 1, time.Minute, nil, nil, testLogger())
		next, calls := passProbe()
		h := mw.Handle(next)

		for i := 0; i < 5; i++ {
			c := textContext(t, b, 7, 100, "hi")
			c.Set(HandlerNameKey, "health")
			require.NoError(t, h(c))
		}

		assert.Equal(t, 5, *calls)
	})
}

func TestEventContent(t *testing.T) {
	b := testBot(t)

	t.Run("message text wins", func(t *testing.T) {
		c := textContext(t, b, 7, 100, "hello")
		assert.Equal(t, "hello", eventContent(c))
	})

	t.Run("caption used for media", func(t *testing.T) {
		c := b.NewContext(tele.Update{
			Message: &tele.Message{
				Sender:  &tele.User{ID: 7},
				Chat:    &tele.Chat{ID: 100},
				Caption: "a photo",
			},
		})
		assert.Equal(t, "a photo", eventContent(c))
	})

	t.Run("callback data used for callbacks", func(t *testing.T) {
		c := b.NewContext(tele.Update{
			Callback: &tele.Callback{
				Sender: &tele.User{ID: 7},
				Data:   "page:2",
			},
		})
		assert.Equal(t, "page:2", eventContent(c))
	})

	t.Run("payload-free update still fingerprints deterministically", func(t *testing.T) {
		u := tele.Update{Message: &tele.Message{Sender: &tele.User{ID: 7}, Chat: &tele.Chat{ID: 100}}}
		assert.Equal(t, eventContent(b.NewContext(u)), eventContent(b.NewContext(u)))
	})
}
