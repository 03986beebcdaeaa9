package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/m-orlov/tgsentinel/internal/bot/keyboard"
)

const blockedPageSize = 10

// BlockManager is the slice of the block service the admin handlers need.
type BlockManager interface {
	Block(ctx context.Context, userID int64, username string) error
	Unblock(ctx context.Context, userID int64, username string) error
	Blocked(ctx context.Context) (map[int64]struct{}, error)
}

// AdminHandlers implements the /block, /unblock and /blocked commands.
type AdminHandlers struct {
	blocks BlockManager
	admins map[int64]struct{}
	log    *slog.Logger
}

func NewAdminHandlers(blocks BlockManager, adminIDs []int64, log *slog.Logger) *AdminHandlers {
	if log == nil {
		log = slog.Default()
	}

	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}

	return &AdminHandlers{
		blocks: blocks,
		admins: admins,
		log:    log,
	}
}

// Block handles "/block <user_id>".
func (h *AdminHandlers) Block(c tele.Context) error {
	if !h.isAdmin(c) {
		return nil
	}

	userID, err := parseUserID(c.Text())
	if err != nil {
		return c.Send("Usage: /block <user_id>")
	}

	// The command carries only the numeric id; the hook gets no username.
	if err := h.blocks.Block(context.Background(), userID, ""); err != nil {
		h.log.Error("admin block failed", slog.Int64("target", userID), slog.Any("error", err))
		return c.Send("Block failed, backend unavailable.")
	}

	return c.Send(fmt.Sprintf("User %d is blocked.", userID))
}

// Unblock handles "/unblock <user_id>".
func (h *AdminHandlers) Unblock(c tele.Context) error {
	if !h.isAdmin(c) {
		return nil
	}

	userID, err := parseUserID(c.Text())
	if err != nil {
		return c.Send("Usage: /unblock <user_id>")
	}

	if err := h.blocks.Unblock(context.Background(), userID, ""); err != nil {
		h.log.Error("admin unblock failed", slog.Int64("target", userID), slog.Any("error", err))
		return c.Send("Unblock failed, backend unavailable.")
	}

	return c.Send(fmt.Sprintf("User %d is unblocked.", userID))
}

// BlockedList handles "/blocked" and renders the first page.
func (h *AdminHandlers) BlockedList(c tele.Context) error {
	if !h.isAdmin(c) {
		return nil
	}

	return h.renderBlocked(c, 1, c.Send)
}

// BlockedPage handles the pagination callbacks of the blocked list.
func (h *AdminHandlers) BlockedPage(c tele.Context) error {
	if !h.isAdmin(c) {
		return nil
	}

	cb := c.Callback()
	if cb == nil {
		return nil
	}

	page, err := keyboard.DecodePage(strings.TrimPrefix(cb.Data, "\f"))
	if err != nil {
		h.log.Warn("bad pagination payload", slog.String("data", cb.Data), slog.Any("error", err))
		return c.Respond(&tele.CallbackResponse{})
	}

	if err := h.renderBlocked(c, page, c.Edit); err != nil {
		return err
	}

	return c.Respond(&tele.CallbackResponse{})
}

func (h *AdminHandlers) renderBlocked(c tele.Context, page int, send func(interface{}, ...interface{}) error) error {
	ids, err := h.blocks.Blocked(context.Background())
	if err != nil {
		h.log.Error("failed to list blocked users", slog.Any("error", err))
		return send("Blocklist is unavailable right now.")
	}

	if len(ids) == 0 {
		return send("No users are blocked.")
	}

	sorted := make([]int64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	totalPages := (len(sorted) + blockedPageSize - 1) / blockedPageSize
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * blockedPageSize
	end := start + blockedPageSize
	if end > len(sorted) {
		end = len(sorted)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Blocked users (%d total):\n", len(sorted))
	for _, id := range sorted[start:end] {
		fmt.Fprintf(&sb, "• %d\n", id)
	}

	buttons, err := keyboard.PageButtons("blocked", page, totalPages)
	if err != nil {
		return err
	}
	markup := keyboard.NewInlineKeyboard().AddRow(buttons...).Build()

	return send(sb.String(), markup)
}

func (h *AdminHandlers) isAdmin(c tele.Context) bool {
	sender := c.Sender()
	if sender == nil {
		return false
	}

	_, ok := h.admins[sender.ID]

	return ok
}

// parseUserID extracts the target user id from command text such as
// "/block 42".
func parseUserID(text string) (int64, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return 0, fmt.Errorf("missing user id")
	}

	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", fields[1])
	}

	return id, nil
}
