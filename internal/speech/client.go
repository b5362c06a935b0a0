package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"yuanfang/internal/config"
	"yuanfang/internal/logging"
)

const (
	defaultVoice   = "zh-CN-YunxiNeural"
	requestTimeout = 10 * time.Second
)

// Client pushes composed replies to an external text-to-speech service.
// Synthesis is best-effort: delivery never waits on it and failures are
// logged, not surfaced.
type Client struct {
	endpoint string
	voice    string
	http     *http.Client
	logger   logging.Logger
}

// NewClient builds a speech client from config. It returns nil when speech
// is disabled; a nil *Client is safe to call.
func NewClient(cfg config.SpeechConfig, logger logging.Logger) *Client {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil
	}
	voice := cfg.Voice
	if voice == "" {
		voice = defaultVoice
	}
	return &Client{
		endpoint: cfg.Endpoint,
		voice:    voice,
		http:     &http.Client{Timeout: requestTimeout},
		logger:   logging.OrNop(logger),
	}
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Speak sends the text for synthesis in the background and returns
// immediately.
func (c *Client) Speak(text string) {
	if c == nil || text == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := c.synthesize(ctx, text); err != nil {
			c.logger.Warn("speech: synthesis failed: %v", err)
		}
	}()
}

func (c *Client) synthesize(ctx context.Context, text string) error {
	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: c.voice})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("speech endpoint returned %s", resp.Status)
	}
	return nil
}
