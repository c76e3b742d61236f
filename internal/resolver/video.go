package resolver

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

var (
	videoHrefExpr = regexp.MustCompile(`\.mp4`)
	thumbHrefExpr = regexp.MustCompile(`\.jpg`)
)

// VideoResolver scrapes a download page for the first video link.
type VideoResolver struct {
	opts   ClientOptions
	client *resty.Client
}

// NewVideoResolver creates a resolver against the video download endpoint.
func NewVideoResolver(opts ClientOptions) *VideoResolver {
	return &VideoResolver{opts: opts, client: newRestyClient(opts)}
}

func (r *VideoResolver) Name() string { return "video" }

// Resolve fetches the markup for url and extracts the first .mp4 anchor and
// the first .jpg anchor as thumbnail.
func (r *VideoResolver) Resolve(ctx context.Context, url string) (Resolution, error) {
	body, err := get(ctx, r.Name(), r.client, r.opts.Endpoint, r.opts.Timeout, map[string]string{"url": url})
	if err != nil {
		return Resolution{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Resolution{}, newError(r.Name(), ErrMalformed, err)
	}
	video := firstHref(doc, videoHrefExpr)
	if video == "" {
		return Resolution{}, newError(r.Name(), ErrNotFound, fmt.Errorf("no video link in response"))
	}
	res, err := NewVideoResolution(Video{
		SourceURL:    video,
		ThumbnailURL: firstHref(doc, thumbHrefExpr),
	})
	if err != nil {
		return Resolution{}, newError(r.Name(), ErrNotFound, err)
	}
	return res, nil
}

// firstHref returns the first anchor href matching expr in document order.
// The HTML parser has already decoded entities.
func firstHref(doc *goquery.Document, expr *regexp.Regexp) string {
	found := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if expr.MatchString(href) {
			found = href
			return false
		}
		return true
	})
	return found
}
