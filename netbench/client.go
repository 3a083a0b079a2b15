package netbench

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// Protocol selects the HTTP version used for the raw network benchmark.
type Protocol string

const (
	HTTP1 Protocol = "h1"
	HTTP2 Protocol = "h2"
	HTTP3 Protocol = "h3"
)

func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "h1", "http1", "HTTP/1.1", "":
		return HTTP1, nil
	case "h2", "http2", "HTTP/2":
		return HTTP2, nil
	case "h3", "http3", "HTTP/3":
		return HTTP3, nil
	default:
		return "", errors.Errorf("unknown protocol %q", s)
	}
}

// newClient builds an HTTP client pinned to one protocol version. The proxy,
// when set, is passed explicitly instead of being read from the environment.
func newClient(protocol Protocol, timeout time.Duration, proxyURL string) (*http.Client, error) {
	var proxy func(*http.Request) (*url.URL, error)

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, errors.Wrap(err, "invalid proxy url")
		}

		proxy = http.ProxyURL(parsed)
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	switch protocol {
	case HTTP1:
		return &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:       proxy,
				DialContext: dialer.DialContext,
				TLSClientConfig: &tls.Config{
					// pin ALPN to HTTP/1.1
					NextProtos: []string{"http/1.1"},
				},
				ForceAttemptHTTP2:   false,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}, nil
	case HTTP2:
		return &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:       proxy,
				DialContext: dialer.DialContext,
				TLSClientConfig: &tls.Config{
					NextProtos: []string{"h2"},
				},
				ForceAttemptHTTP2:   true,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}, nil
	case HTTP3:
		return &http.Client{
			Timeout: timeout,
			Transport: &http3.RoundTripper{
				TLSClientConfig: &tls.Config{},
				QUICConfig:      &quic.Config{},
			},
		}, nil
	default:
		return nil, errors.Errorf("unsupported protocol %q", protocol)
	}
}
