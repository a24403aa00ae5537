package browser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"
)

// StaticSession drives server-rendered storefront pages without a browser.
// Pages are fetched with colly; CSS selectors run through goquery and XPath
// selectors through htmlquery over the same parsed tree.
type StaticSession struct {
	collector *colly.Collector
	page      *staticPage
	typed     map[*html.Node]string
	logger    *slog.Logger
}

type StaticOptions struct {
	UserAgent string
	Timeout   time.Duration
	Transport http.RoundTripper
}

type staticPage struct {
	url  *url.URL
	root *html.Node
	doc  *goquery.Document
}

func NewStaticSession(opts StaticOptions, logger *slog.Logger) *StaticSession {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultOptions().UserAgent
	}

	collector := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.IgnoreRobotsTxt = true

	if opts.Timeout > 0 {
		collector.SetRequestTimeout(opts.Timeout)
	}
	if opts.Transport != nil {
		collector.WithTransport(opts.Transport)
	}

	return &StaticSession{
		collector: collector,
		typed:     make(map[*html.Node]string),
		logger:    logger.With("component", "static_browser"),
	}
}

func (s *StaticSession) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Debug("fetching", "url", rawURL)

	var (
		body     []byte
		finalURL *url.URL
	)

	// Clone shares the HTTP backend but starts without callbacks.
	c := s.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL
	})

	if err := c.Visit(rawURL); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	if finalURL == nil {
		return fmt.Errorf("failed to fetch %s: no response", rawURL)
	}

	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}

	s.page = &staticPage{
		url:  finalURL,
		root: root,
		doc:  goquery.NewDocumentFromNode(root),
	}
	s.typed = make(map[*html.Node]string)

	return nil
}

func (s *StaticSession) CurrentURL() string {
	if s.page == nil {
		return ""
	}
	return s.page.url.String()
}

func (s *StaticSession) FindOne(ctx context.Context, sel Selector) (Element, error) {
	nodes, err := s.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: %w", sel, ErrElementNotFound)
	}
	return &staticElement{session: s, node: nodes[0]}, nil
}

func (s *StaticSession) FindMany(ctx context.Context, sel Selector) ([]Element, error) {
	nodes, err := s.query(ctx, sel)
	if err != nil {
		return nil, err
	}

	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &staticElement{session: s, node: n})
	}
	return elements, nil
}

func (s *StaticSession) Close() error {
	s.page = nil
	s.typed = nil
	return nil
}

func (s *StaticSession) query(ctx context.Context, sel Selector) ([]*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.page == nil {
		return nil, ErrNoPage
	}

	if sel.By == ByXPath {
		nodes, err := htmlquery.QueryAll(s.page.root, sel.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", sel.Value, err)
		}
		return nodes, nil
	}

	css := sel.CSS()
	if css == "" {
		return nil, fmt.Errorf("empty selector %s", sel)
	}
	return s.page.doc.Find(css).Nodes, nil
}

func (s *StaticSession) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if s.page == nil {
		return u, nil
	}
	return s.page.url.ResolveReference(u), nil
}

type staticElement struct {
	session *StaticSession
	node    *html.Node
}

// Text mirrors rendered text: every non-empty text node becomes its own line,
// so split price markup like <span>1,234</span><span>99</span> reads "1,234\n99".
func (e *staticElement) Text() (string, error) {
	return renderedText(e.node), nil
}

func (e *staticElement) Attribute(name string) (string, error) {
	for _, attr := range e.node.Attr {
		if attr.Key != name {
			continue
		}
		switch name {
		case "href", "src", "action":
			u, err := e.session.resolve(attr.Val)
			if err != nil {
				return "", fmt.Errorf("invalid %s %q: %w", name, attr.Val, err)
			}
			return u.String(), nil
		default:
			return attr.Val, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrAttributeNotFound)
}

func (e *staticElement) Type(text string) error {
	if e.session.typed == nil {
		return ErrNoPage
	}
	e.session.typed[e.node] += text
	return nil
}

// Submit performs a GET submission of the enclosing form, like pressing Enter
// in one of its fields.
func (e *staticElement) Submit(ctx context.Context) error {
	form := enclosingForm(e.node)
	if form == nil {
		return fmt.Errorf("element <%s> is not inside a form", e.node.Data)
	}

	method := strings.ToUpper(attrValue(form, "method"))
	if method != "" && method != http.MethodGet {
		return fmt.Errorf("unsupported form method %s", method)
	}

	target, err := e.session.resolve(attrValue(form, "action"))
	if err != nil {
		return fmt.Errorf("invalid form action: %w", err)
	}

	values := url.Values{}
	e.session.page.doc.FindNodes(form).Find("input[name], textarea[name], select[name]").Each(func(i int, field *goquery.Selection) {
		node := field.Nodes[0]
		switch strings.ToLower(attrValue(node, "type")) {
		case "submit", "button", "image", "reset":
			return
		}

		value, typed := e.session.typed[node]
		if !typed {
			value = attrValue(node, "value")
		}
		values.Add(attrValue(node, "name"), value)
	})

	target.RawQuery = values.Encode()
	return e.session.Navigate(ctx, target.String())
}

func enclosingForm(n *html.Node) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "form" {
			return p
		}
	}
	return nil
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func renderedText(n *html.Node) string {
	var lines []string

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			return
		}
		if node.Type == html.TextNode {
			if text := strings.TrimSpace(node.Data); text != "" {
				lines = append(lines, text)
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return strings.Join(lines, "\n")
}
