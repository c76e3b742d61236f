package resolver

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// DefaultPhotoTiers lists target resolutions, highest first.
var DefaultPhotoTiers = []string{"1080 x 1080", "750 x 750", "640 x 640"}

const photoDownloadClass = "btn-download"

// PhotoUserAgent is the mobile browser identity the photo page is requested with.
const PhotoUserAgent = "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"

// DefaultPhotoHeaders are sent with every photo page request. ClientOptions.Headers
// entries with the same name take precedence.
var DefaultPhotoHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Cache-Control":   "no-cache",
	"Pragma":          "no-cache",
}

// PhotoResolver scrapes a photo download page for per-resolution links.
type PhotoResolver struct {
	opts   ClientOptions
	client *resty.Client
	tiers  []string
}

// NewPhotoResolver creates a resolver against the photo download endpoint.
func NewPhotoResolver(opts ClientOptions) *PhotoResolver {
	headers := make(map[string]string, len(DefaultPhotoHeaders)+len(opts.Headers)+1)
	for k, v := range DefaultPhotoHeaders {
		headers[k] = v
	}
	if ref := photoReferer(opts.Endpoint); ref != "" {
		headers["Referer"] = ref
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	opts.Headers = headers
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = PhotoUserAgent
	}
	return &PhotoResolver{opts: opts, client: newRestyClient(opts), tiers: DefaultPhotoTiers}
}

// photoReferer is the tool page the download endpoint is posted from.
func photoReferer(endpoint string) string {
	return strings.TrimSuffix(strings.TrimRight(endpoint, "/"), "/download")
}

func (r *PhotoResolver) Name() string { return "photo" }

// Resolve returns the links of the highest resolution tier that has any.
func (r *PhotoResolver) Resolve(ctx context.Context, url string) (Resolution, error) {
	body, err := get(ctx, r.Name(), r.client, r.opts.Endpoint, r.opts.Timeout, map[string]string{"url": url})
	if err != nil {
		return Resolution{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Resolution{}, newError(r.Name(), ErrMalformed, err)
	}
	links := pickPhotoTier(doc, r.tiers)
	if len(links) == 0 {
		return Resolution{}, newError(r.Name(), ErrNotFound, fmt.Errorf("no download links in response"))
	}
	items := make([]PhotoItem, 0, len(links))
	for _, l := range links {
		items = append(items, PhotoItem{SourceURL: l})
	}
	res, err := NewPhotoResolution(items)
	if err != nil {
		return Resolution{}, newError(r.Name(), ErrNotFound, err)
	}
	return res, nil
}

type photoAnchor struct {
	text string
	href string
}

func pickPhotoTier(doc *goquery.Document, tiers []string) []string {
	var anchors []photoAnchor
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		if !hasClassFragment(s.AttrOr("class", ""), photoDownloadClass) {
			return
		}
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		anchors = append(anchors, photoAnchor{
			text: strings.Join(strings.Fields(s.Text()), " "),
			href: href,
		})
	})
	for _, tier := range tiers {
		label := "Download (" + tier + ")"
		compact := strings.ReplaceAll(tier, " x ", "x")
		var links []string
		for _, a := range anchors {
			if strings.Contains(a.text, label) || strings.Contains(a.href, compact) {
				links = append(links, a.href)
			}
		}
		if len(links) > 0 {
			return links
		}
	}
	return nil
}

func hasClassFragment(classAttr, fragment string) bool {
	for _, c := range strings.Fields(classAttr) {
		if strings.Contains(c, fragment) {
			return true
		}
	}
	return false
}
