package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"cdr.dev/slog"

	"github.com/commsd/commsd/comms"
)

// WebhookPayload is the JSON body POSTed to the configured endpoint for each
// delivered message. Version allows the receiver to handle schema changes.
type WebhookPayload struct {
	Version   string          `json:"_version"`
	MsgID     uuid.UUID       `json:"msg_id"`
	Channel   string          `json:"channel"`
	Recipient string          `json:"recipient"`
	Message   json.RawMessage `json:"message"`
}

// WebhookNotifier delivers messages by POSTing them as JSON to an endpoint.
// It carries the sms and mobile channels, whose actual delivery is owned by a
// downstream gateway.
type WebhookNotifier struct {
	endpoint *url.URL
	client   *http.Client
	log      slog.Logger
}

func NewWebhookNotifier(endpoint *url.URL, log slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		endpoint: endpoint,
		client:   http.DefaultClient,
		log:      log,
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, msg Message, recipient *comms.Recipient) error {
	if w.endpoint == nil {
		return xerrors.New("webhook endpoint not configured")
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return xerrors.Errorf("marshal message: %w", err)
	}

	msgID := uuid.New()
	payload, err := json.Marshal(WebhookPayload{
		Version:   "1.0",
		MsgID:     msgID,
		Channel:   msg.Channel(),
		Recipient: recipient.Name(),
		Message:   raw,
	})
	if err != nil {
		return xerrors.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint.String(), bytes.NewBuffer(payload))
	if err != nil {
		return xerrors.Errorf("create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return xerrors.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 > 2 {
		// Body could be quite long here, let's grab the first 512B and hope it
		// contains useful debug info.
		respBody := make([]byte, 512)
		lr := io.LimitReader(resp.Body, int64(len(respBody)))
		n, err := lr.Read(respBody)
		if err != nil && !xerrors.Is(err, io.EOF) {
			return xerrors.Errorf("non-2xx response (%d), read body: %w", resp.StatusCode, err)
		}
		w.log.Warn(ctx, "unsuccessful delivery", slog.F("status_code", resp.StatusCode),
			slog.F("response", string(respBody[:n])), slog.F("msg_id", msgID))
		return xerrors.Errorf("non-2xx response (%d)", resp.StatusCode)
	}

	return nil
}
