package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// FileResolver asks a file-hosting proxy for a direct download link.
type FileResolver struct {
	opts   ClientOptions
	client *resty.Client
	apiKey string
}

// NewFileResolver creates a resolver against the proxy endpoint using apiKey.
func NewFileResolver(opts ClientOptions, apiKey string) *FileResolver {
	return &FileResolver{opts: opts, client: newRestyClient(opts), apiKey: apiKey}
}

func (r *FileResolver) Name() string { return "file" }

type fileProxyResponse struct {
	DirectLink string          `json:"direct_link"`
	FileName   string          `json:"file_name"`
	Size       string          `json:"size"`
	SizeBytes  json.RawMessage `json:"sizebytes"`
	Thumb      string          `json:"thumb"`
}

// Resolve requires a non-empty direct_link; other fields fall back to placeholders.
func (r *FileResolver) Resolve(ctx context.Context, url string) (Resolution, error) {
	body, err := get(ctx, r.Name(), r.client, r.opts.Endpoint, r.opts.Timeout, map[string]string{
		"link": url,
		"key":  r.apiKey,
	})
	if err != nil {
		return Resolution{}, err
	}
	var payload fileProxyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Resolution{}, newError(r.Name(), ErrMalformed, err)
	}
	if strings.TrimSpace(payload.DirectLink) == "" {
		return Resolution{}, newError(r.Name(), ErrNotFound, fmt.Errorf("response missing direct_link"))
	}
	res, err := NewFileResolution(File{
		SourceURL: payload.DirectLink,
		Name:      strings.TrimSpace(payload.FileName),
		SizeBytes: parseSizeBytes(payload.SizeBytes),
		SizeText:  strings.TrimSpace(payload.Size),
	})
	if err != nil {
		return Resolution{}, newError(r.Name(), ErrNotFound, err)
	}
	return res, nil
}

// parseSizeBytes accepts sizebytes as a JSON number or a numeric string.
func parseSizeBytes(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return 0
		}
		return int64(f)
	}
	return v
}
