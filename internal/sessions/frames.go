package sessions

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/haasonsaas/graphloom/pkg/models"
)

// ErrBadFrame indicates an incoming frame that is not a JSON object with
// a non-empty message.
var ErrBadFrame = errors.New("bad frame")

// incomingFrame is the wire shape of one client message.
type incomingFrame struct {
	Message string `json:"message"`
}

// ParseIncoming decodes one incoming frame and returns its message. A
// malformed frame is a caller error; the session stays open and the
// caller should send an error event built with ErrorEvent.
func ParseIncoming(payload []byte) (string, error) {
	var frame incomingFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return "", errors.Join(ErrBadFrame, err)
	}
	if strings.TrimSpace(frame.Message) == "" {
		return "", ErrBadFrame
	}
	return frame.Message, nil
}

// ErrorEvent shapes a protocol-level failure as an error event.
func ErrorEvent(err error) models.Event {
	return models.Event{Kind: models.EventError, Message: err.Error()}
}
