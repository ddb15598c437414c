package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"tokenq/pkg/model"
)

// TokenClient talks to the public booking API. It remembers the guest
// session token handed out by the first allocation.
type TokenClient struct {
	httpClient *HttpClient
}

func NewTokenClient(baseURL string) *TokenClient {
	return &TokenClient{httpClient: NewHttpClient(baseURL)}
}

func (c *TokenClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *TokenClient) Days(ctx context.Context) ([]model.Day, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/days")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list days: %s", resp.ToString())
	}
	var days []model.Day
	return days, resp.DecodeData(&days)
}

func (c *TokenClient) Allocate(ctx context.Context, req model.AllocateRequest, idempotencyKey string) (*Response, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[HeaderIdempotencyKey] = idempotencyKey
	}
	resp, err := c.httpClient.POST(ctx, "/api/v1/tokens", req, headers)
	if err != nil {
		return nil, err
	}
	if token := resp.Header.Get(HeaderSessionToken); token != "" {
		c.httpClient.Headers[HeaderSessionToken] = token
	}
	return resp, nil
}

func (c *TokenClient) NextToken(ctx context.Context, dateCode string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/tokens/next/"+url.PathEscape(dateCode))
}

func (c *TokenClient) Mine(ctx context.Context) ([]*model.Booking, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/tokens/mine")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list own bookings: %s", resp.ToString())
	}
	var bookings []*model.Booking
	return bookings, resp.DecodeData(&bookings)
}

func (c *TokenClient) SiteConfig(ctx context.Context) (*model.SiteConfig, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/site-config")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get site config: %s", resp.ToString())
	}
	var cfg model.SiteConfig
	return &cfg, resp.DecodeData(&cfg)
}
