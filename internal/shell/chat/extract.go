package chat

import (
	"context"

	"github.com/bnema/marlin/internal/event"
)

// pageContentMaxLen bounds extracted page text handed to providers.
const pageContentMaxLen = 4000

// ExtractStatus classifies a page extraction attempt.
type ExtractStatus int

const (
	// ExtractOK means content was read from the page.
	ExtractOK ExtractStatus = iota
	// ExtractRestricted means the page exists but its content could not be
	// read (cross-origin frame, browser-internal page).
	ExtractRestricted
	// ExtractUnavailable means there is no page to extract from.
	ExtractUnavailable
)

// PageExtraction is the outcome of reading the active page.
type PageExtraction struct {
	Status  ExtractStatus
	URL     string
	Title   string
	Content string
}

// Extractor reads the active page's visible content for AI context. The
// rendering layer provides the implementation; a nil Extractor means page
// context is never attached.
type Extractor interface {
	Extract(ctx context.Context) PageExtraction
}

// extractPageContext asks the extractor for the active page and converts
// the result into the invocation payload shape. Content is truncated so
// prompts stay bounded.
func (s *Store) extractPageContext(ctx context.Context) *event.PageContext {
	if s.extractor == nil {
		return nil
	}
	ext := s.extractor.Extract(ctx)
	switch ext.Status {
	case ExtractUnavailable:
		return nil
	case ExtractRestricted:
		return &event.PageContext{URL: ext.URL, Title: ext.Title, Restricted: true}
	default:
		content := ext.Content
		if len(content) > pageContentMaxLen {
			content = content[:pageContentMaxLen]
		}
		return &event.PageContext{URL: ext.URL, Title: ext.Title, Content: content}
	}
}
