// Package link extracts supported provider links from free-form message text.
package link

import (
	"regexp"
	"strings"
)

// Provider identifies a content provider.
type Provider string

const (
	ProviderInstagram Provider = "instagram"
	ProviderTeraBox   Provider = "terabox"
)

// String returns the provider as a plain string.
func (p Provider) String() string {
	return string(p)
}

// Hint tells the pipeline which resolvers may serve a link.
type Hint string

const (
	// HintVideo marks a link that can only resolve to a video (Instagram reel).
	HintVideo Hint = "video-only"
	// HintMixed marks a link that may be a video or a photo set (Instagram post).
	HintMixed Hint = "mixed"
	// HintFile marks a file-hosting share link.
	HintFile Hint = "file"
)

// Descriptor is a classified, not yet resolved, link.
type Descriptor struct {
	Provider Provider
	Hint     Hint
	RawURL   string
}

// Pattern binds a provider to the expression that recognizes its links.
// HintFor maps a whole match to its hint.
type Pattern struct {
	Provider Provider
	Expr     *regexp.Regexp
	HintFor  func(match string) Hint
}

var instagramExpr = regexp.MustCompile(`https?://(?:www\.)?instagram\.com/(?:reel|p)/[A-Za-z0-9_-]+/?`)

var teraboxExpr = regexp.MustCompile(`https?://(?:www\.)?(?:terabox\.com|1024tera\.com)/s/[A-Za-z0-9_-]+/?`)

// DefaultPatterns lists the supported providers in priority order.
var DefaultPatterns = []Pattern{
	{
		Provider: ProviderInstagram,
		Expr:     instagramExpr,
		HintFor: func(match string) Hint {
			if strings.Contains(match, "/reel/") {
				return HintVideo
			}
			return HintMixed
		},
	},
	{
		Provider: ProviderTeraBox,
		Expr:     teraboxExpr,
		HintFor:  func(string) Hint { return HintFile },
	},
}

// Classifier matches text against an ordered pattern table.
type Classifier struct {
	patterns []Pattern
}

// NewClassifier creates a classifier. Patterns earlier in the slice have priority.
func NewClassifier(patterns ...Pattern) *Classifier {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Classifier{patterns: patterns}
}

// Classify returns every supported link in text, grouped by provider priority
// and in order of appearance within a provider.
func (c *Classifier) Classify(text string) []Descriptor {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []Descriptor
	for _, p := range c.patterns {
		for _, m := range p.Expr.FindAllString(text, -1) {
			out = append(out, Descriptor{
				Provider: p.Provider,
				Hint:     p.HintFor(m),
				RawURL:   m,
			})
		}
	}
	return out
}

var defaultClassifier = NewClassifier()

// Classify runs the classifier built from DefaultPatterns.
func Classify(text string) []Descriptor {
	return defaultClassifier.Classify(text)
}

// Select returns the descriptor the pipeline should process. Classify already
// orders descriptors by provider priority, so this is the first one.
func Select(descs []Descriptor) (Descriptor, bool) {
	if len(descs) == 0 {
		return Descriptor{}, false
	}
	return descs[0], true
}
