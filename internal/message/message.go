package message

import (
	"encoding/json"
	"strings"
)

// EventHeader carries the GitHub event kind of a webhook delivery.
const EventHeader = "x-github-event"

// EventMessage is the JSONL envelope for GitHub webhook events as broadcast
// by a relay.
type EventMessage struct {
	Type       string          `json:"type"`
	Event      string          `json:"event"`
	DeliveryID string          `json:"delivery_id"`
	Truncated  bool            `json:"truncated,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// Request turns a relayed event into a formatter request.
func (m EventMessage) Request() WebhookRequest {
	return WebhookRequest{
		Headers: map[string]string{EventHeader: m.Event},
		Content: m.Payload,
	}
}

// WebhookRequest is a webhook delivery as handed over by the host.
type WebhookRequest struct {
	Headers map[string]string `json:"headers"`
	Content json.RawMessage   `json:"content"`
}

// Event returns the event kind header. Header names are matched
// case-insensitively; when several spellings are present the exact
// lowercase key wins, then the lexically smallest.
func (r WebhookRequest) Event() string {
	if v, ok := r.Headers[EventHeader]; ok {
		return v
	}
	key, found := "", false
	for k := range r.Headers {
		if strings.EqualFold(k, EventHeader) && (!found || k < key) {
			key, found = k, true
		}
	}
	if !found {
		return ""
	}
	return r.Headers[key]
}

type ChatMessage struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	ThumbURL string  `json:"thumb_url,omitempty"`
	Color    string  `json:"color,omitempty"`
	Text     string  `json:"text"`
	Fields   []Field `json:"fields"`
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// ErrorBody is the error arm of a Result.
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Result is either a chat message to post, an error, or neither when the
// event produces nothing to post.
type Result struct {
	Content *ChatMessage `json:"content,omitempty"`
	Error   *ErrorBody   `json:"error,omitempty"`
}

func Success(msg ChatMessage) Result {
	return Result{Content: &msg}
}

func Failure(text string) Result {
	return Result{Error: &ErrorBody{Success: false, Message: text}}
}

func Skip() Result {
	return Result{}
}

func (r Result) Failed() bool {
	return r.Error != nil
}

func (r Result) Skipped() bool {
	return r.Content == nil && r.Error == nil
}
