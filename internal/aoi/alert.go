package aoi

import (
	"fmt"
	"time"
)

// ThumbnailKind selects the before or after image of an alert.
type ThumbnailKind string

const (
	ThumbnailBefore ThumbnailKind = "before"
	ThumbnailAfter  ThumbnailKind = "after"
)

// ThumbnailKinds is the resolution order for each alert.
var ThumbnailKinds = []ThumbnailKind{ThumbnailBefore, ThumbnailAfter}

// ParseThumbnailKind parses "before" or "after".
func ParseThumbnailKind(s string) (ThumbnailKind, error) {
	switch ThumbnailKind(s) {
	case ThumbnailBefore, ThumbnailAfter:
		return ThumbnailKind(s), nil
	}
	return "", fmt.Errorf("unknown thumbnail kind %q (want before or after)", s)
}

// ChangeAlert is a backend-detected change inside an AOI. Read-only.
type ChangeAlert struct {
	ID            string
	AOIID         string
	DetectionDate time.Time
	AreaOfChange  float64 // square meters
	Status        string
}

// ResolvedAlert is a ChangeAlert with renderable thumbnail URLs.
// Partial is only ever set under MergePerAlert, when a thumbnail could not be resolved.
type ResolvedAlert struct {
	ChangeAlert
	BeforeURL string
	AfterURL  string
	Partial   bool
}

// URL returns the resolved URL for kind.
func (r *ResolvedAlert) URL(kind ThumbnailKind) string {
	if kind == ThumbnailBefore {
		return r.BeforeURL
	}
	return r.AfterURL
}

func (r *ResolvedAlert) setURL(kind ThumbnailKind, url string) {
	if kind == ThumbnailBefore {
		r.BeforeURL = url
	} else {
		r.AfterURL = url
	}
}
