package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/savefood/backoffice_core/config"
	"github.com/savefood/backoffice_core/models"
)

// Client wraps the messaging channel the chat screens sit on. The transport
// is opaque to callers: connect, subscribe, send, mark-as-read. Reconnection
// policy belongs to the caller.
type Client struct {
	url      string
	senderId string

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	handlersMu sync.RWMutex
	onMessage  func(models.ChatMessage)
	onTyping   func(models.ChatMessage)
}

func NewClient(url string, senderId string) *Client {
	return &Client{url: url, senderId: senderId}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return errors.New("already connected")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	c.done = make(chan struct{})
	go c.readPump(conn, c.done)
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	// polite close, then tear down
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := conn.Close()
	<-done
	return err
}

// OnMessage registers the incoming-message subscriber. One subscriber per
// client; registering again replaces the previous one.
func (c *Client) OnMessage(fn func(models.ChatMessage)) {
	c.handlersMu.Lock()
	c.onMessage = fn
	c.handlersMu.Unlock()
}

// OnTyping registers the typing-indicator subscriber.
func (c *Client) OnTyping(fn func(models.ChatMessage)) {
	c.handlersMu.Lock()
	c.onTyping = fn
	c.handlersMu.Unlock()
}

func (c *Client) SendMessage(conversationId string, body string) (models.ChatMessage, error) {
	msg := models.ChatMessage{
		ID:             uuid.NewString(),
		Type:           models.ChatMessageText,
		ConversationId: conversationId,
		SenderId:       c.senderId,
		Body:           body,
		SentAt:         time.Now(),
	}
	return msg, c.write(msg)
}

func (c *Client) SendTyping(conversationId string) error {
	return c.write(models.ChatMessage{
		ID:             uuid.NewString(),
		Type:           models.ChatMessageTyping,
		ConversationId: conversationId,
		SenderId:       c.senderId,
		SentAt:         time.Now(),
	})
}

func (c *Client) MarkAsRead(conversationId string, messageIds []string) error {
	return c.write(models.ChatMessage{
		ID:             uuid.NewString(),
		Type:           models.ChatMessageRead,
		ConversationId: conversationId,
		SenderId:       c.senderId,
		ReadMessageIds: messageIds,
		SentAt:         time.Now(),
	})
}

// write serializes frames onto the single connection; gorilla allows only
// one concurrent writer.
func (c *Client) write(msg models.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				config.LogWarn(config.GetLogger(), "chat", "readPump", c.url, err)
			}
			return
		}
		var msg models.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			config.LogWarn(config.GetLogger(), "chat", "readPump", "bad frame", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg models.ChatMessage) {
	c.handlersMu.RLock()
	onMessage := c.onMessage
	onTyping := c.onTyping
	c.handlersMu.RUnlock()
	switch msg.Type {
	case models.ChatMessageTyping:
		if onTyping != nil {
			onTyping(msg)
		}
	default:
		if onMessage != nil {
			onMessage(msg)
		}
	}
}
