package alert

import (
	"context"
	"fmt"
	"sort"

	httpclient "margin_maker/pkg/http"
)

const slackFooter = "Margin Monitor"

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color   string       `json:"color"`
	Pretext string       `json:"pretext"`
	Text    string       `json:"text"`
	Fields  []slackField `json:"fields,omitempty"`
	Ts      int64        `json:"ts"`
	Footer  string       `json:"footer"`
}

type slackMessage struct {
	Attachments []slackAttachment `json:"attachments"`
}

// SlackChannel posts alerts to an incoming webhook through the retrying HTTP client
type SlackChannel struct {
	client *httpclient.Client
}

func NewSlackChannel(webhookURL string, opts httpclient.Options) *SlackChannel {
	return &SlackChannel{client: httpclient.NewClient(webhookURL, opts)}
}

func (s *SlackChannel) Name() string {
	return "slack"
}

func levelColor(level AlertLevel) string {
	switch level {
	case Warning:
		return "#ffcc00"
	case Error:
		return "#ff0000"
	case Critical:
		return "#8b0000"
	default:
		return "#36a64f"
	}
}

func slackMessageFor(alert AlertPayload) slackMessage {
	keys := make([]string, 0, len(alert.Fields))
	for k := range alert.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]slackField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, slackField{Title: k, Value: alert.Fields[k], Short: true})
	}

	return slackMessage{Attachments: []slackAttachment{{
		Color:   levelColor(alert.Level),
		Pretext: fmt.Sprintf("[%s] %s", alert.Level, alert.Title),
		Text:    alert.Message,
		Fields:  fields,
		Ts:      alert.Timestamp.Unix(),
		Footer:  slackFooter,
	}}}
}

func (s *SlackChannel) Send(ctx context.Context, alert AlertPayload) error {
	if _, err := s.client.PostJSON(ctx, "", slackMessageFor(alert)); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
