package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/version"
)

// secureHTTPClient is an HTTP client with SSRF protection.
var secureHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err //nolint:wrapcheck
			}

			// Validate the resolved IP right before connecting.
			if ip := net.ParseIP(host); ip != nil {
				if err := validateAddrBeforeDial(ip); err != nil {
					return nil, fmt.Errorf("blocked connection to private IP: %w", err)
				}
			}

			dialer := &net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}
			return dialer.DialContext(ctx, network, addr)
		},
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
	// Don't follow redirects to prevent bypassing IP validation.
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// Sender delivers events to the configured webhook endpoints.
type Sender struct {
	endpoints   []string
	secret      string
	contentType ContentType
	logger      *log.Logger
}

// NewSender builds a sender from the webhook configuration. Endpoint URLs
// are validated up front so a misconfigured target fails at startup, not on
// the first push.
func NewSender(cfg config.WebhookConfig, logger *log.Logger) (*Sender, error) {
	if logger == nil {
		logger = log.Default()
	}

	contentType, err := ParseContentType(cfg.ContentType)
	if err != nil {
		return nil, err
	}

	for _, e := range cfg.Endpoints {
		if err := ValidateWebhookURL(e); err != nil {
			return nil, fmt.Errorf("webhook endpoint %q: %w", e, err)
		}
	}

	return &Sender{
		endpoints:   cfg.Endpoints,
		secret:      cfg.Secret,
		contentType: contentType,
		logger:      logger.WithPrefix("webhook"),
	}, nil
}

// SendEvent delivers the payload to every configured endpoint. Failures are
// collected per endpoint; one bad endpoint does not stop the rest.
func (s *Sender) SendEvent(ctx context.Context, payload EventPayload) error {
	var errs []error
	for _, endpoint := range s.endpoints {
		if err := s.send(ctx, endpoint, payload); err != nil {
			s.logger.Error("deliver webhook", "endpoint", endpoint, "event", payload.Event(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
		}
	}

	return errors.Join(errs...)
}

func (s *Sender) send(ctx context.Context, endpoint string, payload EventPayload) error {
	var buf bytes.Buffer
	switch s.contentType {
	case ContentTypeJSON:
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return err
		}
	case ContentTypeForm:
		v, err := query.Values(payload)
		if err != nil {
			return err
		}
		buf.WriteString(v.Encode()) // nolint: errcheck
	default:
		return ErrInvalidContentType
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return err
	}

	headers := http.Header{}
	headers.Add("Content-Type", s.contentType.String())
	headers.Add("User-Agent", "OpenCodeHub/"+version.Version)
	headers.Add("X-OpenCodeHub-Event", payload.Event().String())
	headers.Add("X-OpenCodeHub-Delivery", id.String())
	if s.secret != "" {
		headers.Add("X-OpenCodeHub-Signature", Sign(s.secret, buf.Bytes()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}

	req.Header = headers
	res, err := secureHTTPClient.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()                   // nolint: errcheck
	_, _ = io.Copy(io.Discard, res.Body)     // nolint: errcheck
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %d", res.StatusCode)
	}

	s.logger.Debug("delivered webhook", "endpoint", endpoint, "event", payload.Event(), "delivery", id)
	return nil
}

// Sign returns the hex HMAC-SHA256 signature header value for the body.
func Sign(secret string, body []byte) string {
	sig := hmac.New(sha256.New, []byte(secret))
	sig.Write(body) // nolint: errcheck
	return "sha256=" + hex.EncodeToString(sig.Sum(nil))
}
