package chat

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"letscrap-backend/internal/database"
	"letscrap-backend/internal/logging"
	"letscrap-backend/internal/metrics"
	"letscrap-backend/internal/models"
	"letscrap-backend/internal/scrap"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

const MaxMessageLength = 1000

var (
	ErrRequestNotFound = errors.New("scrap request not found")
	ErrNotParticipant  = errors.New("not a participant of this request")
	ErrNotInRoom       = errors.New("not in the request room")
	ErrEmptyMessage    = errors.New("empty message")
	ErrMessageTooLong  = errors.New("message too long")
)

// clientMessages are the texts sent in error frames.
var clientMessages = map[error]string{
	ErrRequestNotFound: "Scrap request not found",
	ErrNotParticipant:  "Not authorized for this chat",
	ErrNotInRoom:       "Join the request room first",
	ErrEmptyMessage:    "Message cannot be empty",
	ErrMessageTooLong:  "Message must be at most 1000 characters",
}

type MessageResponse struct {
	ID             uint   `json:"id"`
	ScrapRequestID uint   `json:"scrap_request_id"`
	SenderID       uint   `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Message        string `json:"message"`
	CreatedAt      string `json:"created_at"`
}

type StatusResponse struct {
	RequestID uint                 `json:"request_id"`
	Status    models.RequestStatus `json:"status"`
	DealerID  *uint                `json:"dealer_id"`
	ChangedBy uint                 `json:"changed_by"`
	ChangedAt string               `json:"changed_at"`
}

type sendPayload struct {
	ScrapRequestID json.RawMessage `json:"scrap_request_id"`
	Message        string          `json:"message"`
}

func toMessageResponse(m *models.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ScrapRequestID: m.ScrapRequestID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Message:        m.Message,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Authorize checks that userID owns requestID or is its assigned dealer.
func Authorize(userID, requestID uint) error {
	var r models.ScrapRequest
	if err := database.DB.Select("id", "user_id", "dealer_id").First(&r, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	if !scrap.IsParticipant(userID, &r) {
		return ErrNotParticipant
	}
	return nil
}

// History returns a request's messages oldest first.
func History(requestID uint) ([]MessageResponse, error) {
	var msgs []models.ChatMessage
	err := database.DB.
		Where("scrap_request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessageResponse(&msgs[i]))
	}
	return out, nil
}

// Save trims and stores one message.
func Save(requestID, senderID uint, senderName, text string) (*MessageResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	m := models.ChatMessage{
		ScrapRequestID: requestID,
		SenderID:       senderID,
		SenderName:     senderName,
		Message:        text,
	}
	if err := database.DB.Create(&m).Error; err != nil {
		return nil, err
	}
	resp := toMessageResponse(&m)
	return &resp, nil
}

// parseRequestID accepts a request id sent either as a JSON number or a numeric string.
func parseRequestID(raw json.RawMessage) (uint, bool) {
	var n uint
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// dispatcher routes client frames to the room operations.
type dispatcher struct {
	hub *Hub
}

func (d *dispatcher) handle(c *Client, in inbound) {
	switch in.Event {
	case EventJoin:
		d.join(c, in.Data)
	case EventLeave:
		if id, ok := parseRequestID(in.Data); ok {
			d.hub.Leave(c, id)
		}
	case EventSend:
		d.send(c, in.Data)
	case EventPing:
		c.Reply(EventPong, nil)
	default:
		c.replyError("Unknown event")
	}
}

func (d *dispatcher) join(c *Client, data json.RawMessage) {
	id, ok := parseRequestID(data)
	if !ok {
		c.replyError("Invalid scrap request id")
		return
	}

	if err := Authorize(c.UserID, id); err != nil {
		d.fail(c, id, err)
		return
	}

	history, err := History(id)
	if err != nil {
		d.fail(c, id, err)
		return
	}

	d.hub.Join(c, id)
	c.Reply(EventHistory, history)
}

func (d *dispatcher) send(c *Client, data json.RawMessage) {
	var p sendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.replyError("Malformed message")
		return
	}
	id, ok := parseRequestID(p.ScrapRequestID)
	if !ok {
		c.replyError("Invalid scrap request id")
		return
	}
	if !d.hub.InRoom(c, id) {
		c.replyError(clientMessages[ErrNotInRoom])
		return
	}
	// the request may have been deleted or reassigned since the join
	if err := Authorize(c.UserID, id); err != nil {
		d.hub.Leave(c, id)
		d.fail(c, id, err)
		return
	}

	msg, err := Save(id, c.UserID, c.Name, p.Message)
	if err != nil {
		d.fail(c, id, err)
		return
	}
	metrics.ChatMessages.Inc()
	d.hub.Broadcast(id, Frame{Event: EventReceiveMessage, Data: msg})
}

// fail reports err to the client; unexpected errors are logged and masked.
func (d *dispatcher) fail(c *Client, requestID uint, err error) {
	if msg, ok := clientMessages[err]; ok {
		c.replyError(msg)
		return
	}
	logging.Error().Err(err).Uint("request_id", requestID).Uint("user_id", c.UserID).Msg("chat operation failed")
	c.replyError("Something went wrong")
}
