package research

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"
)

const (
	robotsAgent        = "NotionCRMBot"
	defaultUserAgent   = "NotionCRMBot/1.0 (lead research)"
	maxWebsiteChars    = 12000
	truncationMarker   = "\n\n[Content truncated for brevity]"
	maxBodyBytes       = 2 << 20
	defaultMaxPages    = 3
	defaultMaxRequests = 5
)

// subpages are tried after the homepage, in order.
var subpages = []string{"/about", "/pricing", "/blog"}

// skippedElements never contribute text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Aside:    true,
	atom.Form:     true,
	atom.Noscript: true,
	atom.Iframe:   true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Main: true, atom.Tr: true, atom.Table: true,
	atom.Blockquote: true, atom.Pre: true, atom.Title: true,
}

// WebsiteOptions configures the website provider.
type WebsiteOptions struct {
	Timeout     time.Duration
	Delay       time.Duration // minimum spacing between page requests
	MaxPages    int           // pages with content, homepage included
	MaxRequests int           // hard cap on page requests per lead
	UserAgent   string
	HTTPClient  *http.Client
}

// WebsiteProvider reads the company homepage and a few well-known subpages.
// It honors robots.txt, spaces requests out, and caches pages for its
// lifetime. It is not safe for concurrent use.
type WebsiteProvider struct {
	opts    WebsiteOptions
	client  *http.Client
	limiter *rate.Limiter
	robots  map[string]*robotstxt.RobotsData // nil entry allows everything
	pages   map[string]string
}

// NewWebsiteProvider creates a WebsiteProvider.
func NewWebsiteProvider(opts WebsiteOptions) *WebsiteProvider {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = defaultMaxRequests
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: opts.Timeout}).DialContext,
				TLSHandshakeTimeout: opts.Timeout,
			},
		}
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &WebsiteProvider{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		robots:  make(map[string]*robotstxt.RobotsData),
		pages:   make(map[string]string),
	}
}

// Name implements Provider.
func (w *WebsiteProvider) Name() string { return ProviderWebsite }

// Gather implements Provider. It stops after MaxPages pages with content or
// MaxRequests requests, whichever comes first.
func (w *WebsiteProvider) Gather(ctx context.Context, q Query) (*Finding, error) {
	if q.Website == "" {
		return nil, ErrSkipped
	}
	base, err := url.Parse(q.Website)
	if err != nil || base.Host == "" {
		return nil, ErrSkipped
	}

	targets := []struct{ label, url string }{{"Homepage", q.Website}}
	for _, p := range subpages {
		targets = append(targets, struct{ label, url string }{p, base.ResolveReference(&url.URL{Path: p}).String()})
	}

	f := &Finding{}
	var sections []string
	for _, t := range targets {
		if len(sections) >= w.opts.MaxPages || f.PagesFetched >= w.opts.MaxRequests {
			break
		}
		if !w.allowed(ctx, t.url) {
			zap.L().Debug("research: blocked by robots.txt", zap.String("url", t.url))
			continue
		}

		f.PagesFetched++
		text := w.page(ctx, t.url)
		if text == "" {
			continue
		}
		sections = append(sections, "["+t.label+"]\n"+text)
		f.SourceURLs = append(f.SourceURLs, t.url)
	}

	f.WebsiteContent = truncateContent(strings.Join(sections, "\n\n"))
	return f, nil
}

// page returns the cached text for pageURL, fetching it on first use.
func (w *WebsiteProvider) page(ctx context.Context, pageURL string) string {
	if text, ok := w.pages[pageURL]; ok {
		return text
	}
	text := w.fetch(ctx, pageURL)
	w.pages[pageURL] = text
	return text
}

// fetch downloads and extracts one page. Failures yield empty text.
func (w *WebsiteProvider) fetch(ctx context.Context, pageURL string) string {
	if err := w.limiter.Wait(ctx); err != nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", w.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := w.client.Do(req)
	if err != nil {
		zap.L().Debug("research: fetch failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Debug("research: non-2xx page", zap.String("url", pageURL), zap.Int("status", resp.StatusCode))
		return ""
	}
	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ""
	}
	return extractText(decodeBody(body, contentType))
}

// allowed checks robots.txt for pageURL's host. An unreachable robots.txt
// allows everything.
func (w *WebsiteProvider) allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	origin := u.Scheme + "://" + u.Host

	data, ok := w.robots[origin]
	if !ok {
		data = w.fetchRobots(ctx, origin)
		w.robots[origin] = data
	}
	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, robotsAgent)
}

func (w *WebsiteProvider) fetchRobots(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", w.opts.UserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// decodeBody converts body to UTF-8 using the charset declared in the
// Content-Type header. Unknown or absent charsets pass through.
func decodeBody(body []byte, contentType string) []byte {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["charset"] == "" {
		return body
	}
	enc, err := htmlindex.Get(params["charset"])
	if err != nil {
		return body
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}

// extractText renders the visible text of an HTML document, one block per
// line, dropping boilerplate elements and lines of two characters or fewer.
func extractText(body []byte) string {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(strings.Join(strings.Fields(n.Data), " "))
			b.WriteByte(' ')
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimSpace(strings.Join(strings.Fields(line), " "))
		if utf8.RuneCountInString(line) <= 2 {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func truncateContent(s string) string {
	if len(s) <= maxWebsiteChars {
		return s
	}
	n := maxWebsiteChars
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + truncationMarker
}
