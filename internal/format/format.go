// Package format turns GitHub webhook deliveries into chat messages.
package format

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/go-github/v61/github"
	"github.com/kehao95/gh-notify/internal/message"
)

const (
	MsgUnsupportedMethod      = "Unsupported method"
	MsgUnsupportedIssueAction = "Unsupported issue action"
	MsgUnsupportedPullAction  = "Unsupported pull request action"
	msgMalformedPrefix        = "Malformed payload: "
)

const (
	shortIDLength   = 7
	shortLabelLimit = 40
)

// Kind is a GitHub event kind the formatter knows about.
type Kind int

const (
	KindUnknown Kind = iota
	KindPing
	KindIssues
	KindIssueComment
	KindCommitComment
	KindPush
	KindPullRequest
	KindWorkflowRun
)

var kindNames = [...]string{
	KindUnknown:       "",
	KindPing:          "ping",
	KindIssues:        "issues",
	KindIssueComment:  "issue_comment",
	KindCommitComment: "commit_comment",
	KindPush:          "push",
	KindPullRequest:   "pull_request",
	KindWorkflowRun:   "workflow_run",
}

func ParseKind(event string) Kind {
	for k, name := range kindNames {
		if name != "" && name == event {
			return Kind(k)
		}
	}
	return KindUnknown
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return ""
	}
	return kindNames[k]
}

// SupportedEvents lists the event kinds Format handles, in dispatch order.
func SupportedEvents() []string {
	events := make([]string, 0, len(kindNames)-1)
	for _, name := range kindNames[1:] {
		events = append(events, name)
	}
	return events
}

// MissingFieldError reports a payload without a nested object the event
// kind requires.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing field " + e.Field
}

func missing(field string) error {
	return &MissingFieldError{Field: field}
}

// Format maps a webhook request onto a chat message result. It never
// panics on malformed input; problems are reported in the result.
func Format(req message.WebhookRequest) message.Result {
	kind := ParseKind(req.Event())

	switch kind {
	case KindPing:
		return run(req.Content, formatPing)
	case KindIssues:
		return run(req.Content, formatIssues)
	case KindIssueComment:
		return run(req.Content, formatIssueComment)
	case KindCommitComment:
		return run(req.Content, formatCommitComment)
	case KindPush:
		return run(req.Content, formatPush)
	case KindPullRequest:
		return run(req.Content, formatPullRequest)
	case KindWorkflowRun:
		return run(req.Content, formatWorkflowRun)
	default:
		return message.Failure(MsgUnsupportedMethod)
	}
}

func run[T any](content json.RawMessage, handle func(*T) (message.Result, error)) message.Result {
	event := new(T)
	if err := json.Unmarshal(content, event); err != nil {
		return message.Failure(msgMalformedPrefix + err.Error())
	}
	result, err := handle(event)
	if err != nil {
		return message.Failure(msgMalformedPrefix + err.Error())
	}
	return result
}

// capitalizeFirst upper-cases the first rune of s.
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func shortID(sha string) string {
	if len(sha) <= shortIDLength {
		return sha
	}
	return sha[:shortIDLength]
}

func labelsField(labels []*github.Label) message.Field {
	names := make([]string, 0, len(labels))
	for _, label := range labels {
		names = append(names, label.GetName())
	}
	value := strings.Join(names, ", ")
	return message.Field{
		Title: "Labels",
		Value: value,
		Short: utf8.RuneCountInString(value) <= shortLabelLimit,
	}
}

// headline renders the repository line and linked title shared by issue,
// pull request and comment messages. The zero-width space keeps chat
// clients from reading "#12" as a channel reference.
func headline(repo, verb string, number int, title, url string) string {
	return fmt.Sprintf("_%s_\n**[%s \u200b#%d - %s](%s)**\n\n", repo, verb, number, title, url)
}

func commitLine(sha, url, msg string) string {
	return "[" + shortID(sha) + "](" + url + ") - " + msg
}

func attachment(thumb, text string) message.ChatMessage {
	return message.ChatMessage{
		Attachments: []message.Attachment{{
			ThumbURL: thumb,
			Text:     text,
			Fields:   []message.Field{},
		}},
	}
}
