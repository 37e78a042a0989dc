// Package page scans a web page and produces the translatable text blocks a
// page agent feeds to the translation provider.
package page

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	DefaultFetchTimeout  = 12 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024

	// MaxBlocks caps how many text blocks one translate request carries.
	MaxBlocks = 400

	defaultUserAgent = "skim-agent/1.0 (+https://horse.fit/skim)"
)

// FetchOptions controls HTTP behavior for page scans.
type FetchOptions struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

// Extractor fetches a page and splits its readable content into blocks.
type Extractor struct {
	opts FetchOptions
}

func NewExtractor(opts FetchOptions) *Extractor {
	return &Extractor{opts: opts}
}

// ExtractBlocks retrieves the page and returns its translatable text blocks
// in document order.
func (e *Extractor) ExtractBlocks(ctx context.Context, pageURL string) ([]string, error) {
	if e == nil {
		return nil, fmt.Errorf("extractor is nil")
	}
	target := strings.TrimSpace(pageURL)
	if target == "" {
		return nil, fmt.Errorf("page URL is required")
	}

	timeout := e.opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	bodyLimit := e.opts.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	userAgent := strings.TrimSpace(e.opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	client := e.opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "text/plain") {
		return SplitBlocks(CleanText(string(body))), nil
	}

	parsedURL, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability parse: %w", err)
	}

	var renderedText bytes.Buffer
	if err := article.RenderText(&renderedText); err != nil {
		return nil, fmt.Errorf("render readability text: %w", err)
	}

	text := CleanText(renderedText.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	return SplitBlocks(text), nil
}

// CleanText normalizes line endings and collapses extra in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}

// SplitBlocks splits cleaned text into translation blocks, capped at
// MaxBlocks.
func SplitBlocks(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	parts := strings.Split(text, "\n\n")
	blocks := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		blocks = append(blocks, trimmed)
		if len(blocks) == MaxBlocks {
			break
		}
	}
	return blocks
}

// TagBlocks joins blocks with [n][/n] index tags so a single provider call
// can translate the whole batch without losing block boundaries.
func TagBlocks(blocks []string) string {
	var sb strings.Builder
	for i, block := range blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%d]%s[/%d]", i, block, i)
	}
	return sb.String()
}

var taggedBlockRE = regexp.MustCompile(`(?s)\[(\d+)\](.*?)\[/\s*(\d+)\s*\]`)

// ParseTaggedBlocks recovers per-block text from a tagged provider reply.
// Blocks the provider dropped keep their original text so a partial reply
// never blanks part of the page.
func ParseTaggedBlocks(reply string, originals []string) []string {
	out := make([]string, len(originals))
	copy(out, originals)

	for _, match := range taggedBlockRE.FindAllStringSubmatch(reply, -1) {
		open, err := strconv.Atoi(match[1])
		if err != nil || match[1] != match[3] {
			continue
		}
		if open < 0 || open >= len(out) {
			continue
		}
		translated := strings.TrimSpace(match[2])
		if translated == "" {
			continue
		}
		out[open] = translated
	}
	return out
}
