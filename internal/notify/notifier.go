package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is the notification severity, mapped to an emoji and an embed
// color.
type Level string

const (
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
	Info    Level = "info"
)

var levelStyle = map[Level]struct {
	emoji string
	color int
}{
	Success: {"✅", 0x2ecc71},
	Warning: {"⚠️", 0xf39c12},
	Error:   {"❌", 0xe74c3c},
	Info:    {"ℹ️", 0x3498db},
}

// Notifier posts processing outcomes somewhere humans look. Failures
// are logged and swallowed: a broken webhook must never break
// processing.
type Notifier interface {
	Notify(ctx context.Context, level Level, title, message string, fields map[string]string)
}

// WebhookNotifier posts embed-style JSON to a chat webhook. A nil
// *WebhookNotifier is a valid no-op notifier.
type WebhookNotifier struct {
	url  string
	http *http.Client
	log  *logrus.Logger
}

// NewWebhookNotifier returns nil when no webhook is configured, which
// disables notifications entirely.
func NewWebhookNotifier(url string, log *logrus.Logger) *WebhookNotifier {
	if url == "" {
		return nil
	}
	return &WebhookNotifier{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp"`
	Fields      []embedField `json:"fields,omitempty"`
}

const maxFields = 10

func (n *WebhookNotifier) Notify(ctx context.Context, level Level, title, message string, fields map[string]string) {
	if n == nil {
		return
	}
	style := levelStyle[level]

	e := embed{
		Title:       fmt.Sprintf("%s %s", style.emoji, title),
		Description: message,
		Color:       style.color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(e.Fields) == maxFields {
			break
		}
		v := fields[k]
		if v == "" {
			continue
		}
		e.Fields = append(e.Fields, embedField{Name: k, Value: v, Inline: true})
	}

	payload, err := json.Marshal(map[string]any{"embeds": []embed{e}})
	if err != nil {
		n.logfail(err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logfail(err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.logfail(err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logfail(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
}

func (n *WebhookNotifier) logfail(err error) {
	if n.log != nil {
		n.log.WithError(err).Warn("notification delivery failed")
	}
}
