package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf16"
)

const DefaultTelegramAPI = "https://api.telegram.org"

// MaxTelegramText is the Bot API limit on sendMessage text, in UTF-16 code
// units.
const MaxTelegramText = 4096

// TelegramTransport posts batches to a Telegram chat through the Bot API.
type TelegramTransport struct {
	apiURL string
	token  string
	chatID string
	client *http.Client
}

// NewTelegram returns a transport with its own HTTP client. An empty apiURL
// uses the public Bot API.
func NewTelegram(apiURL, token, chatID string, timeout time.Duration) *TelegramTransport {
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramTransport{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: timeout},
	}
}

func (t *TelegramTransport) Name() string {
	return "telegram"
}

// Validate reports missing credentials.
func (t *TelegramTransport) Validate() error {
	if t.token == "" || t.chatID == "" {
		return errors.New("telegram token and chat id are required")
	}
	return nil
}

// Send posts text, split on line boundaries into as many messages as the
// Bot API size limit requires.
func (t *TelegramTransport) Send(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyMessage
	}

	for _, part := range splitText(text, MaxTelegramText) {
		if err := t.post(ctx, part); err != nil {
			return err
		}
	}
	return nil
}

func (t *TelegramTransport) post(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("encode telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("telegram returned %s", resp.Status)
	}
	return nil
}

func (t *TelegramTransport) endpoint() string {
	return fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
}

// splitText packs whole lines into chunks of at most limit UTF-16 units.
// A single line over the limit is cut at rune boundaries.
func splitText(text string, limit int) []string {
	var (
		chunks  []string
		current strings.Builder
		size    int
	)

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for _, piece := range cutLine(line, limit) {
			n := utf16Len(piece)
			sep := 0
			if current.Len() > 0 {
				sep = 1
			}
			if size+sep+n > limit {
				flush()
				sep = 0
			}
			if sep == 1 {
				current.WriteByte('\n')
			}
			current.WriteString(piece)
			size += sep + n
		}
	}
	flush()

	return chunks
}

func cutLine(line string, limit int) []string {
	if utf16Len(line) <= limit {
		return []string{line}
	}

	var pieces []string
	start, size := 0, 0
	for i, r := range line {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if size+n > limit {
			pieces = append(pieces, line[start:i])
			start, size = i, 0
		}
		size += n
	}
	return append(pieces, line[start:])
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
