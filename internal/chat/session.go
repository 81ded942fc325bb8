package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trustmed/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// Questions waiting behind the one being answered.
	questionBacklog = 8
)

// session is one browser conversation. The knowledge base session id is
// carried between turns so follow-up questions keep their context.
//
// The read loop only reads; questions are answered by a separate goroutine
// so pongs keep refreshing the read deadline while Bedrock is working.
type session struct {
	id        string
	server    *Server
	conn      *websocket.Conn
	kbSession string
	logger    *logger.Logger

	writeMu sync.Mutex
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	id := uuid.New().String()
	sess := &session{
		id:     id,
		server: s,
		conn:   conn,
		logger: s.logger.With("session", id),
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.Sessions.Inc()
		defer s.opts.Metrics.Sessions.Dec()
	}

	sess.run(r.Context())
}

func (c *session) run(ctx context.Context) {
	defer c.conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.logger.Info("Chat session started")

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.server.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.server.pongWait))
	})

	go c.ping(ctx)

	if err := c.send(Message{Type: TypeMessage, ID: uuid.New().String(), Author: BannerAuthor, Content: c.server.opts.Welcome}); err != nil {
		c.logger.Error("Failed to send welcome message", "error", err)
		return
	}

	questions := make(chan string, questionBacklog)
	done := make(chan struct{})

	go c.answerLoop(ctx, cancel, questions, done)

	c.readLoop(ctx, questions)

	cancel()
	close(questions)
	<-done

	c.end()
}

// readLoop reads client events until the peer leaves, asks to stop, or the
// answer loop gives up on the connection.
func (c *session) readLoop(ctx context.Context, questions chan<- string) {
	for {
		var in Message
		if err := c.conn.ReadJSON(&in); err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", "error", err)
			}

			return
		}

		switch in.Type {
		case TypeUserMessage:
			select {
			case questions <- in.Content:
			default:
				c.logger.Warn("Dropping question, too many pending", "pending", questionBacklog)
			}
		case TypeStop:
			return
		default:
			c.logger.Debug("Ignoring client event", "type", in.Type)
		}
	}
}

// answerLoop answers questions in arrival order. A failed write means the
// connection is gone, so it cancels the session and unblocks the reader.
func (c *session) answerLoop(ctx context.Context, cancel context.CancelFunc, questions <-chan string, done chan<- struct{}) {
	defer close(done)

	for question := range questions {
		if ctx.Err() != nil {
			continue
		}

		if err := c.answer(ctx, question); err != nil {
			if ctx.Err() == nil {
				c.logger.Error("Failed to deliver answer", "error", err)
				cancel()
				_ = c.conn.Close()
			}
		}
	}
}

// answer sends an empty placeholder, asks the knowledge base, then updates
// the placeholder with the answer or an error text.
func (c *session) answer(ctx context.Context, question string) error {
	msgID := uuid.New().String()

	if err := c.send(Message{Type: TypeMessage, ID: msgID, Author: BannerAuthor}); err != nil {
		return err
	}

	update := Message{Type: TypeUpdate, ID: msgID, Author: BannerAuthor}

	question = strings.TrimSpace(question)
	if err := c.server.validate.Struct(ChatRequest{Message: question}); err != nil {
		update.Content = "⚠️ " + validationText(err)
		return c.send(update)
	}

	askCtx, cancel := context.WithTimeout(ctx, c.server.opts.RequestTimeout)
	defer cancel()

	answer, err := c.server.asker.Converse(askCtx, question, c.kbSession)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err != nil {
		c.logger.Error("Question failed", "error", err)
		update.Content = ErrorText(err)

		return c.send(update)
	}

	if answer.SessionID != "" {
		c.kbSession = answer.SessionID
	}

	update.Content = answer.Content()
	update.Elements = SourceElements(answer.Citations)

	return c.send(update)
}

// end attempts the goodbye message; the peer may already be gone.
func (c *session) end() {
	err := c.send(Message{Type: TypeEnd, ID: uuid.New().String(), Author: AssistantAuthor, Content: SessionEndedText})
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("Could not send session end message", "error", err)
	}

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))

	c.logger.Info("Chat session ended")
}

func (c *session) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *session) ping(ctx context.Context) {
	ticker := time.NewTicker(c.server.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
