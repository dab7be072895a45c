// Package email sends transactional mail through the Postmark HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/e2dconnect/e2d/internal/model"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

// ErrNotConfigured is returned when no server token is set.
var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at another endpoint, e.g. a test server.
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

// Message is one outgoing mail.
type Message struct {
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

type postmarkEmail struct {
	From string `json:"From"`
	Message
}

type postmarkError struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(postmarkEmail{From: c.fromEmail, Message: msg})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var pe postmarkError
		if json.NewDecoder(resp.Body).Decode(&pe) == nil && pe.Message != "" {
			return fmt.Errorf("postmark API error %d: %s", pe.ErrorCode, pe.Message)
		}
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	return nil
}

// SendTest checks the mail configuration end to end.
func (c *Client) SendTest(ctx context.Context, to, association string) error {
	text := fmt.Sprintf("Ceci est un message de test envoyé par %s.\nLa configuration email fonctionne.", association)
	return c.Send(ctx, Message{
		To:       to,
		Subject:  "Test de configuration email - " + association,
		TextBody: text,
		HtmlBody: paragraphs(text),
	})
}

// SendAdhesionReceived confirms to the applicant that the request arrived.
func (c *Client) SendAdhesionReceived(ctx context.Context, a model.AdhesionRequest, association string) error {
	text := fmt.Sprintf("Bonjour %s,\nNous avons bien reçu votre demande d'adhésion à %s.\nLe bureau vous répondra prochainement.",
		a.FirstName, association)
	return c.Send(ctx, Message{
		To:       a.Email,
		Subject:  "Votre demande d'adhésion - " + association,
		TextBody: text,
		HtmlBody: paragraphs(text),
	})
}

// SendAdhesionDecision tells the applicant whether the request was accepted.
func (c *Client) SendAdhesionDecision(ctx context.Context, a model.AdhesionRequest, accepted bool, association string) error {
	outcome := "n'a malheureusement pas été retenue"
	if accepted {
		outcome = "a été acceptée. Bienvenue"
	}
	text := fmt.Sprintf("Bonjour %s,\nVotre demande d'adhésion à %s %s.", a.FirstName, association, outcome)
	return c.Send(ctx, Message{
		To:       a.Email,
		Subject:  "Réponse à votre demande d'adhésion - " + association,
		TextBody: text,
		HtmlBody: paragraphs(text),
	})
}

func paragraphs(text string) string {
	var b bytes.Buffer
	for _, line := range bytes.Split([]byte(text), []byte("\n")) {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(string(line)))
		b.WriteString("</p>")
	}
	return b.String()
}
