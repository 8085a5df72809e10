package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// BlockType describes the kind of anti-bot page detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// LocalScraper fetches HTML directly and extracts visible text. Falls
// through to Jina when blocked.
type LocalScraper struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewLocalScraper creates a LocalScraper with sensible defaults.
func NewLocalScraper(userAgent string) *LocalScraper {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; autotrans-cli/1.0)"
	}
	return &LocalScraper{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: userAgent,
		maxBytes:  1 << 20,
	}
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches a URL, rejects block pages, and converts the rest to text.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, kind := DetectBlock(resp.StatusCode, resp.Header, raw); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", kind)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}
	if len(raw) < 100 {
		return nil, eris.New("local_http: empty page")
	}

	// Many Japanese clinic sites still serve Shift_JIS or EUC-JP.
	decoded, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: charset")
	}
	title, text, err := ExtractText(decoded)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, eris.New("local_http: no visible text")
	}
	return &Page{URL: targetURL, Title: title, Text: text, Source: "local_http"}, nil
}

// DetectBlock checks a response for anti-bot interstitials.
func DetectBlock(status int, header http.Header, body []byte) (bool, BlockType) {
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || strings.EqualFold(header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	switch {
	case strings.Contains(lower, "checking your browser"),
		strings.Contains(lower, "cf-browser-verification"),
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge"):
		return true, BlockCloudflare
	case strings.Contains(lower, "captcha"):
		return true, BlockCaptcha
	}

	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}
	return false, BlockNone
}

// skipElements never contribute visible article text.
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"svg": true, "nav": true, "footer": true, "header": true,
	"aside": true, "form": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"article": true, "section": true,
}

// ExtractText parses HTML and returns the document title and the visible
// body text, one block per line.
func ExtractText(r io.Reader) (string, string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", eris.Wrap(err, "scrape: parse html")
	}

	var title string
	var sb strings.Builder
	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if depth > 100 {
			return
		}
		switch n.Type {
		case html.TextNode:
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				sb.WriteString(t)
				sb.WriteByte(' ')
			}
		case html.ElementNode:
			if n.Data == "title" {
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
			if skipElements[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteByte('\n')
		}
	}
	walk(doc, 0)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return title, strings.Join(lines, "\n"), nil
}
