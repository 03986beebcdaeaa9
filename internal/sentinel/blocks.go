package sentinel

import (
	"context"
	"log/slog"

	"github.com/m-orlov/tgsentinel/internal/storage"
	"github.com/m-orlov/tgsentinel/pkg/metrics"
)

// BlockHook is notified after a block or unblock takes effect. Hooks fire
// only on actual state transitions and run best-effort. username is empty
// when the caller only knows the numeric id.
type BlockHook func(ctx context.Context, userID int64, username string)

// BlockService wraps the blocklist with transition-edge notifications and
// keeps the blocked-user gauge current.
type BlockService struct {
	blocklist storage.Blocklist
	onBlock   BlockHook
	onUnblock BlockHook
	log       *slog.Logger
}

func NewBlockService(blocklist storage.Blocklist, onBlock, onUnblock BlockHook, log *slog.Logger) *BlockService {
	if log == nil {
		log = slog.Default()
	}

	return &BlockService{
		blocklist: blocklist,
		onBlock:   onBlock,
		onUnblock: onUnblock,
		log:       log,
	}
}

// Block adds the user to the blocklist. Blocking an already-blocked user is
// a no-op and does not fire the hook again.
func (s *BlockService) Block(ctx context.Context, userID int64, username string) error {
	blocked, err := s.blocklist.IsBlocked(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.blocklist.Block(ctx, userID); err != nil {
		return err
	}

	if !blocked {
		s.fire(ctx, s.onBlock, "block", userID, username)
		s.log.Info("user blocked",
			slog.Int64("user_id", userID),
			slog.String("username", username))
	}

	s.refreshGauge(ctx)

	return nil
}

// Unblock removes the user from the blocklist. Unblocking an unknown user
// is a no-op and fires no hook.
func (s *BlockService) Unblock(ctx context.Context, userID int64, username string) error {
	blocked, err := s.blocklist.IsBlocked(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.blocklist.Unblock(ctx, userID); err != nil {
		return err
	}

	if blocked {
		s.fire(ctx, s.onUnblock, "unblock", userID, username)
		s.log.Info("user unblocked",
			slog.Int64("user_id", userID),
			slog.String("username", username))
	}

	s.refreshGauge(ctx)

	return nil
}

// IsBlocked reports whether the user is currently blocked.
func (s *BlockService) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	return s.blocklist.IsBlocked(ctx, userID)
}

// Blocked returns a snapshot of all blocked user ids.
func (s *BlockService) Blocked(ctx context.Context) (map[int64]struct{}, error) {
	return s.blocklist.Blocked(ctx)
}

func (s *BlockService) fire(ctx context.Context, hook BlockHook, name string, userID int64, username string) {
	if hook == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordHookFailure(name)
			s.log.Error("block hook panicked",
				slog.String("hook", name),
				slog.Any("panic", r))
		}
	}()

	hook(ctx, userID, username)
}

func (s *BlockService) refreshGauge(ctx context.Context) {
	ids, err := s.blocklist.Blocked(ctx)
	if err != nil {
		s.log.Warn("failed to refresh blocked-users gauge", slog.Any("error", err))
		return
	}

	metrics.SetBlockedUsers(len(ids))
}
