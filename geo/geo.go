// Package geo annotates a run with the measuring vantage point. Lookups are
// best-effort: any failure yields an all-null location and never affects the
// benchmark.
package geo

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"
)

const defaultEndpoint = "https://ipinfo.io/json"

// Location describes where the benchmark ran from. All fields are nil when
// the lookup failed.
type Location struct {
	City   *string `json:"city"`
	Source *string `json:"source"`
	IP     *string `json:"ip"`
}

type Config struct {
	Endpoint string
	Token    string
	ProxyURL string
	Timeout  time.Duration
}

type Resolver struct {
	client   *resty.Client
	endpoint string
	token    string
	log      zerolog.Logger
}

func NewResolver(cfg Config) *Resolver {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && (r.StatusCode() >= 500 || r.StatusCode() == 429)
		})

	if cfg.ProxyURL != "" {
		client.SetProxy(cfg.ProxyURL)
	}

	return &Resolver{
		client:   client,
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		log:      log2.With().Str("component", "geo").Caller().Logger(),
	}
}

// Lookup resolves the current vantage point.
func (r *Resolver) Lookup(ctx context.Context) Location {
	var payload struct {
		City string `json:"city"`
		IP   string `json:"ip"`
	}

	request := r.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&payload)

	if r.token != "" {
		request.SetQueryParam("token", r.token)
	}

	response, err := request.Get(r.endpoint)
	if err != nil {
		r.log.Debug().Err(err).Msg("geo lookup failed")
		return Location{}
	}

	if !response.IsSuccess() {
		r.log.Debug().Int("status", response.StatusCode()).Msg("geo lookup rejected")
		return Location{}
	}

	source := "ipinfo"

	return Location{
		City:   &payload.City,
		Source: &source,
		IP:     &payload.IP,
	}
}
