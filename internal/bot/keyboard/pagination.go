package keyboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Telegram rejects callback payloads longer than 64 bytes.
const callbackDataLimitBytes = 64

// EncodePage builds the callback payload for a page-navigation button.
func EncodePage(action string, page int) (string, error) {
	payload := action + ":" + strconv.Itoa(page)
	if len(payload) > callbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", callbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodePage extracts the requested page from a pagination callback payload.
func DecodePage(data string) (int, error) {
	idx := strings.LastIndex(data, ":")
	if idx < 0 {
		return 0, errors.New("pagination payload has no page component")
	}

	page, err := strconv.Atoi(data[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("parse page number: %w", err)
	}
	if page < 1 {
		return 0, fmt.Errorf("page out of range: %d", page)
	}

	return page, nil
}

// PageButtons returns up to three buttons (prev, current, next) for
// paginating a list under a shared action prefix. Out-of-range pages are
// clamped.
func PageButtons(action string, page, totalPages int) ([]InlineButton, error) {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	buttons := make([]InlineButton, 0, 3)

	if page > 1 {
		data, err := EncodePage(action, page-1)
		if err != nil {
			return nil, err
		}
		buttons = append(buttons, InlineButton{Text: "◀️ Prev", Data: data})
	}

	current, err := EncodePage(action, page)
	if err != nil {
		return nil, err
	}
	buttons = append(buttons, InlineButton{
		Text: fmt.Sprintf("Page %d/%d", page, totalPages),
		Data: current,
	})

	if page < totalPages {
		data, err := EncodePage(action, page+1)
		if err != nil {
			return nil, err
		}
		buttons = append(buttons, InlineButton{Text: "Next ▶️", Data: data})
	}

	return buttons, nil
}
