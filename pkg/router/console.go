package router

import (
	"context"
	"net/http"
	"time"

	"multiai-telebot/backend/ai"
	"multiai-telebot/backend/conversation/service"
	"multiai-telebot/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// consoleRequest is one operator prompt sent over the socket.
type consoleRequest struct {
	ConversationID int64  `json:"conversation_id"`
	Text           string `json:"text"`
}

// consoleFrame is one server-to-operator message. Streamed completions
// arrive as a sequence of "fragment" frames followed by one "reply".
type consoleFrame struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// console runs the live debug console: operator prompts go through the
// same exchange path as platform messages, so what the console shows is
// what a user would get.
func (r *Router) console(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.opts.Logger.LogError(err, "console upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var req consoleRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.opts.Logger.LogError(err, "console read failed")
			}
			return
		}
		if req.ConversationID == 0 || req.Text == "" {
			conn.WriteJSON(consoleFrame{Type: "error", Error: "conversation_id and text are required"})
			continue
		}

		in := service.ExchangeInput{
			ConversationID: req.ConversationID,
			MessageID:      time.Now().UnixNano(),
			AuthorName:     "console",
			Content:        ai.TextContent(req.Text),
		}
		sender := &consoleReplySender{conn: conn, log: r.opts.Logger}

		if _, err := r.opts.Chat.HandleExchange(c.Request.Context(), in, sender); err != nil {
			conn.WriteJSON(consoleFrame{Type: "error", Error: err.Error()})
			continue
		}
		conn.WriteJSON(consoleFrame{Type: "done"})
	}
}

// consoleReplySender relays the assistant reply over the socket.
// Message ids are synthetic; the console has no platform assigning
// them.
type consoleReplySender struct {
	conn *websocket.Conn
	log  *logger.Logger
}

func (s *consoleReplySender) SendReply(ctx context.Context, conversationID int64, text string) (int64, error) {
	if err := s.conn.WriteJSON(consoleFrame{Type: "reply", Text: text}); err != nil {
		return 0, err
	}
	return time.Now().UnixNano(), nil
}

func (s *consoleReplySender) UpdateReply(ctx context.Context, conversationID, messageID int64, text string) error {
	return s.conn.WriteJSON(consoleFrame{Type: "fragment", Text: text})
}
