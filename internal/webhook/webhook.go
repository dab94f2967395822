// Package webhook calls the workflow automation that generates and mails a
// quote for a lead. The shared secret stays on the server.
package webhook

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/diewo77/toiture-backoffice/internal/models"
)

// SecretHeader carries the shared secret.
const SecretHeader = "X-Webhook-Secret"

var ErrNotConfigured = errors.New("quote webhook URL not configured")

// StatusError is returned for a non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook answered %d", e.Code)
}

// QuotePayload is the body posted for one lead.
type QuotePayload struct {
	LeadID     string `json:"lead_id"`
	Nom        string `json:"nom"`
	Prenom     string `json:"prenom"`
	Email      string `json:"email"`
	Telephone  string `json:"telephone"`
	Adresse    string `json:"adresse"`
	Ville      string `json:"ville"`
	TypeProjet string `json:"type_projet"`
}

// PayloadFromLead copies the contact and project fields of l.
func PayloadFromLead(l models.Lead) QuotePayload {
	return QuotePayload{
		LeadID:     l.ID,
		Nom:        l.Nom,
		Prenom:     l.Prenom,
		Email:      l.Email,
		Telephone:  l.Telephone,
		Adresse:    l.Adresse,
		Ville:      l.Ville,
		TypeProjet: l.TypeProjet,
	}
}

// Client posts to one fixed endpoint. It never retries.
type Client struct {
	url     string
	secret  string
	timeout time.Duration
	http    *fasthttp.Client
}

// New returns a client for url. A zero timeout means 30 seconds.
func New(url, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:     url,
		secret:  secret,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "toiture-backoffice",
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// Configured reports whether an endpoint is set.
func (c *Client) Configured() bool { return c != nil && c.url != "" }

// SendQuote posts p. Any 2xx answer is a success.
func (c *Client) SendQuote(p QuotePayload) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode quote payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set(SecretHeader, c.secret)
	req.SetBodyRaw(body)

	if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
		return fmt.Errorf("post quote webhook: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		b := resp.Body()
		if len(b) > 200 {
			b = b[:200]
		}
		return &StatusError{Code: code, Body: string(b)}
	}
	return nil
}
