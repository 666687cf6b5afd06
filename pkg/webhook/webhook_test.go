package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/matryer/is"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
)

func TestSign(t *testing.T) {
	is := is.New(t)

	body := []byte(`{"event":"push"}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(body) // nolint: errcheck

	is.Equal(Sign("secret", body), "sha256="+hex.EncodeToString(mac.Sum(nil)))
}

func TestNewSenderValidatesEndpoints(t *testing.T) {
	is := is.New(t)

	_, err := NewSender(config.WebhookConfig{
		ContentType: "json",
		Endpoints:   []string{"http://127.0.0.1/hook"},
	}, nil)
	is.True(err != nil)

	_, err = NewSender(config.WebhookConfig{
		ContentType: "carrier-pigeon",
	}, nil)
	is.True(err != nil)

	s, err := NewSender(config.WebhookConfig{ContentType: "form"}, nil)
	is.NoErr(err)
	is.Equal(s.contentType, ContentTypeForm)
}

func TestParseContentType(t *testing.T) {
	is := is.New(t)

	ct, err := ParseContentType("json")
	is.NoErr(err)
	is.Equal(ct, ContentTypeJSON)

	ct, err = ParseContentType("application/json; charset=utf-8")
	is.NoErr(err)
	is.Equal(ct, ContentTypeJSON)

	ct, err = ParseContentType("application/x-www-form-urlencoded")
	is.NoErr(err)
	is.Equal(ct, ContentTypeForm)

	_, err = ParseContentType("text/html")
	is.True(err != nil)
}

func TestEventRoundtrip(t *testing.T) {
	is := is.New(t)

	e, err := ParseEvent("push")
	is.NoErr(err)
	is.Equal(e, EventPush)
	is.Equal(e.String(), "push")

	_, err = ParseEvent("teleport")
	is.True(err != nil)
}
