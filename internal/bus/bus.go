// Package bus is the websocket client the dashboard shard talks through.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	log "log/slog"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

const (
	KindCommand   = "command"
	KindOCR       = "ocr"
	KindDetect    = "detect"
	KindTranslate = "translate"
	KindReply     = "reply"
	KindError     = "error"
)

var ErrClosed = errors.New("bus closed")

type Message struct {
	ID      string `json:"id"`
	ReplyTo string `json:"reply_to,omitempty"`
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Lang    string `json:"lang,omitempty"`
	Image   []byte `json:"image,omitempty"`
	Audio   []byte `json:"audio,omitempty"`
}

func NewMessage(from, to, kind, content string) *Message {
	return &Message{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		Kind:    kind,
		Content: content,
	}
}

// Reply builds the answer to m, addressed back to its sender.
func (m *Message) Reply(from, kind, content string) *Message {
	r := NewMessage(from, m.From, kind, content)
	r.ReplyTo = m.ID
	return r
}

type Bus struct {
	url    string
	reconn time.Duration
	dialer *ws.Dialer

	mu     sync.Mutex
	conn   *ws.Conn
	closed bool
}

// Dial connects to url. Read redials every reconn after the connection
// drops.
func Dial(ctx context.Context, url string, reconn time.Duration) (*Bus, error) {
	if reconn <= 0 {
		reconn = time.Second
	}

	b := &Bus{url: url, reconn: reconn, dialer: ws.DefaultDialer}

	conn, _, err := b.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	b.conn = conn

	log.Info("Connected to bus", "url", url)
	return b, nil
}

func (b *Bus) current() (*ws.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.conn, nil
}

// Read returns the next message, reconnecting when the server goes away.
// A malformed payload is returned as an error without dropping the
// connection.
func (b *Bus) Read(ctx context.Context) (*Message, error) {
	for {
		conn, err := b.current()
		if err != nil {
			return nil, err
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if _, cerr := b.current(); cerr != nil {
				return nil, cerr
			}
			log.Warn("Bus connection lost", "err", err, "closed", isClosed(err))
			if err := b.reconnect(ctx); err != nil {
				return nil, err
			}
			continue
		}

		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return &m, nil
	}
}

func (b *Bus) Write(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return b.conn.WriteMessage(ws.TextMessage, data)
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	_ = b.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return b.conn.Close()
}

func (b *Bus) reconnect(ctx context.Context) error {
	for {
		conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
		if err == nil {
			b.mu.Lock()
			if b.closed {
				b.mu.Unlock()
				conn.Close()
				return ErrClosed
			}
			b.conn.Close()
			b.conn = conn
			b.mu.Unlock()

			log.Info("Reconnected to bus", "url", b.url)
			return nil
		}

		log.Debug("Redial failed", "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.reconn):
		}
	}
}

func isClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
