package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Vovarama1992/whatsapp-family-router/internal/directory"
)

const DefaultTwilioBaseURL = "https://api.twilio.com"

type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	// From is the bot's own sending number, with or without the
	// whatsapp: prefix.
	From string
}

// TwilioOutbound sends WhatsApp messages through the Twilio Messages API.
type TwilioOutbound struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
	logger     *slog.Logger
}

func NewTwilioOutbound(cfg TwilioConfig, logger *slog.Logger) *TwilioOutbound {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioOutbound{
		baseURL:    baseURL,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       whatsappAddress(cfg.From),
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (c *TwilioOutbound) Send(ctx context.Context, to string, text string) error {
	form := url.Values{}
	form.Set("To", whatsappAddress(to))
	form.Set("From", c.from)
	form.Set("Body", text)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/2010-04-01/Accounts/"+url.PathEscape(c.accountSID)+"/Messages.json",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var created struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &created); err == nil {
		c.logger.Debug("twilio message queued", "to", to, "sid", created.SID, "status", created.Status)
	}
	return nil
}

func whatsappAddress(number string) string {
	return directory.TransportPrefix + directory.NormalizeSender(number)
}
