package webhook

import (
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		err  error
	}{
		{"valid https", "https://example.com/hook", nil},
		{"valid with port", "https://example.com:8443/hook", nil},
		{"empty", "", ErrInvalidURL},
		{"bad scheme", "ftp://example.com/hook", ErrInvalidScheme},
		{"file scheme", "file:///etc/passwd", ErrInvalidScheme},
		{"localhost", "http://localhost/hook", ErrPrivateIP},
		{"localhost subdomain", "http://foo.localhost/hook", ErrPrivateIP},
		{"loopback ip", "http://127.0.0.1/hook", ErrPrivateIP},
		{"loopback v6", "http://[::1]/hook", ErrPrivateIP},
		{"private 10", "http://10.0.0.5/hook", ErrPrivateIP},
		{"private 172", "http://172.16.0.1/hook", ErrPrivateIP},
		{"private 192", "http://192.168.1.1/hook", ErrPrivateIP},
		{"link local metadata", "http://169.254.169.254/latest/meta-data", ErrPrivateIP},
		{"unspecified", "http://0.0.0.0/hook", ErrPrivateIP},
		{"shared address space", "http://100.64.0.1/hook", ErrPrivateIP},
		{"benchmarking", "http://198.18.0.1/hook", ErrPrivateIP},
		{"reserved", "http://240.0.0.1/hook", ErrPrivateIP},
		{"broadcast", "http://255.255.255.255/hook", ErrPrivateIP},
		{"multicast", "http://224.0.0.1/hook", ErrPrivateIP},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			err := ValidateWebhookURL(tc.url)
			if tc.err == nil {
				// Public hostnames need DNS; accept resolution failures in
				// sandboxed test environments.
				if err != nil && errors.Is(err, ErrInvalidURL) {
					t.Skipf("cannot resolve: %v", err)
				}
				is.NoErr(err)
				return
			}
			is.True(errors.Is(err, tc.err))
		})
	}
}

func TestValidateAddrBeforeDial(t *testing.T) {
	is := is.New(t)

	is.True(validateAddrBeforeDial([]byte{127, 0, 0, 1}) != nil)
	is.True(validateAddrBeforeDial([]byte{169, 254, 169, 254}) != nil)
	is.NoErr(validateAddrBeforeDial([]byte{93, 184, 216, 34}))
}
