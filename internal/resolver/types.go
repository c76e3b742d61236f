// Package resolver turns classified links into provider-neutral resolutions
// describing the assets to fetch.
package resolver

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Kind discriminates the Resolution variants.
type Kind string

const (
	KindVideo  Kind = "video"
	KindPhotos Kind = "photos"
	KindFile   Kind = "file"
)

// Video is a single video with an optional thumbnail.
type Video struct {
	SourceURL    string
	ThumbnailURL string
}

// PhotoItem is one image of a photo set.
type PhotoItem struct {
	SourceURL string
}

// File is a generic hosted file with declared metadata.
type File struct {
	SourceURL string
	Name      string
	SizeBytes int64
	SizeText  string
}

// Ext returns the lowercased extension of the declared name, or "" when it has none.
func (f File) Ext() string {
	return strings.ToLower(path.Ext(f.Name))
}

// Resolution describes the assets behind a link. Exactly one of Video, Photos
// or File is populated, as indicated by Kind.
type Resolution struct {
	Kind   Kind
	Video  Video
	Photos []PhotoItem
	File   File
}

// Count returns the number of fetchable assets.
func (r Resolution) Count() int {
	if r.Kind == KindPhotos {
		return len(r.Photos)
	}
	return 1
}

// NewVideoResolution builds a video resolution; the source URL is required.
func NewVideoResolution(v Video) (Resolution, error) {
	v.SourceURL = strings.TrimSpace(v.SourceURL)
	v.ThumbnailURL = strings.TrimSpace(v.ThumbnailURL)
	if v.SourceURL == "" {
		return Resolution{}, fmt.Errorf("video source url is required")
	}
	return Resolution{Kind: KindVideo, Video: v}, nil
}

// NewPhotoResolution builds a photo set; at least one item is required and
// items without a URL are dropped.
func NewPhotoResolution(items []PhotoItem) (Resolution, error) {
	kept := make([]PhotoItem, 0, len(items))
	for _, it := range items {
		u := strings.TrimSpace(it.SourceURL)
		if u == "" {
			continue
		}
		kept = append(kept, PhotoItem{SourceURL: u})
	}
	if len(kept) == 0 {
		return Resolution{}, fmt.Errorf("photo set is empty")
	}
	return Resolution{Kind: KindPhotos, Photos: kept}, nil
}

// NewFileResolution builds a file resolution; the source URL is required.
func NewFileResolution(f File) (Resolution, error) {
	f.SourceURL = strings.TrimSpace(f.SourceURL)
	if f.SourceURL == "" {
		return Resolution{}, fmt.Errorf("file source url is required")
	}
	if strings.TrimSpace(f.Name) == "" {
		f.Name = DefaultFileName
	}
	if strings.TrimSpace(f.SizeText) == "" {
		f.SizeText = DefaultSizeText
	}
	if f.SizeBytes < 0 {
		f.SizeBytes = 0
	}
	return Resolution{Kind: KindFile, File: f}, nil
}

// Resolver resolves one URL against one external service.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, url string) (Resolution, error)
}
