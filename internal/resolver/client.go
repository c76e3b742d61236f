package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultTimeout bounds each outbound resolver call.
	DefaultTimeout = 30 * time.Second

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultFileName  = "terabox_file"
	DefaultSizeText  = "Unknown"
)

// ClientOptions configures the HTTP side of a resolver.
type ClientOptions struct {
	Endpoint  string
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

func newRestyClient(opts ClientOptions) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", ua)
	for k, v := range opts.Headers {
		client.SetHeader(k, v)
	}
	return client
}

// get issues a GET with query params under the client timeout and returns the
// body of a 2xx response.
func get(ctx context.Context, name string, client *resty.Client, endpoint string, timeout time.Duration, params map[string]string) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(endpoint)
	if err != nil {
		return nil, transportError(name, err)
	}
	if !resp.IsSuccess() {
		return nil, newError(name, ErrUnreachable, fmt.Errorf("status %d", resp.StatusCode()))
	}
	return resp.Body(), nil
}
