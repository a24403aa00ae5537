package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maltedev/amazon-price-tracker/internal/browser"
	"github.com/maltedev/amazon-price-tracker/internal/models"
	"github.com/maltedev/amazon-price-tracker/internal/parser"
	"github.com/maltedev/amazon-price-tracker/internal/ratelimit"
)

// Selectors locate the page elements the extractor reads.
type Selectors struct {
	SearchBox    browser.Selector
	ResultsList  browser.Selector
	ResultLink   browser.Selector
	Title        browser.Selector
	Seller       browser.Selector
	Price        browser.Selector
	Availability browser.Selector
	AltPrice     browser.Selector
}

func DefaultSelectors() Selectors {
	return Selectors{
		SearchBox:    browser.ID("twotabsearchtextbox"),
		ResultsList:  browser.Class("s-result-list"),
		ResultLink:   browser.XPath("//a[@class = 'a-link-normal s-no-outline']"),
		Title:        browser.Class("a-size-large product-title-word-break"),
		Seller:       browser.XPath("//a[@id = 'bylineInfo']"),
		Price:        browser.ID("priceblock_ourprice"),
		Availability: browser.ID("availability"),
		AltPrice:     browser.Class("olp-padding-right"),
	}
}

type Config struct {
	BaseURL         string
	Currency        string
	Language        string
	PathMarker      string
	SuffixMarker    string
	AvailableMarker string
	Dedupe          bool
	DedupeSize      int
	Selectors       Selectors
}

func DefaultConfig(baseURL, currency string) Config {
	return Config{
		BaseURL:         baseURL,
		Currency:        currency,
		Language:        "en_GB",
		PathMarker:      "/dp/",
		SuffixMarker:    "/ref",
		AvailableMarker: "Available",
		DedupeSize:      1024,
		Selectors:       DefaultSelectors(),
	}
}

// Extractor walks a storefront search and turns result pages into product
// records. It owns its driver and closes it when Run returns.
type Extractor struct {
	driver  browser.Driver
	prices  parser.PriceParser
	cfg     Config
	delay   ratelimit.Delay
	metrics *Metrics
	logger  *slog.Logger
}

func NewExtractor(driver browser.Driver, prices parser.PriceParser, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if prices == nil {
		prices = parser.NewLineSplitParser(cfg.Currency)
	}
	if cfg.PathMarker == "" {
		cfg.PathMarker = "/dp/"
	}
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = 1024
	}

	return &Extractor{
		driver: driver,
		prices: prices,
		cfg:    cfg,
		delay:  ratelimit.NewJitterDelay(2*time.Second, 2*time.Second),
		logger: logger.With("component", "extractor"),
	}
}

func (e *Extractor) WithDelay(d ratelimit.Delay) *Extractor {
	if d == nil {
		d = ratelimit.NoDelay{}
	}
	e.delay = d
	return e
}

func (e *Extractor) WithMetrics(m *Metrics) *Extractor {
	e.metrics = m
	return e
}

// Run discovers product links for searchTerm within filter and fetches every
// product in order. Products with an unreadable field are dropped.
func (e *Extractor) Run(ctx context.Context, searchTerm string, filter models.SearchFilter) (records []models.ProductRecord, err error) {
	start := time.Now()
	defer func() {
		if cerr := e.driver.Close(); cerr != nil {
			e.logger.Warn("failed to close driver", "error", cerr)
		}
		e.metrics.runFinished(time.Since(start))
	}()

	e.logger.Info("starting run", "search_term", searchTerm, "min", filter.Min, "max", filter.Max)

	links, err := e.DiscoverLinks(ctx, searchTerm, filter)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		e.logger.Warn("stopping run, no product links", "search_term", searchTerm)
		return nil, ErrNoProductLinks
	}

	e.logger.Info("collected product links", "count", len(links))

	ids := e.identifiers(links)

	records = make([]models.ProductRecord, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := e.FetchRecord(ctx, id)
		if err != nil {
			var missing *MissingFieldsError
			if errors.As(err, &missing) {
				e.metrics.recordDropped(missing.Fields)
				e.logger.Warn("dropping product", "asin", id, "missing", missing.Fields)
				continue
			}
			return nil, err
		}

		e.metrics.recordExtracted()
		records = append(records, *record)
	}

	e.logger.Info("run finished", "products", len(records), "duration", time.Since(start))

	return records, nil
}

func (e *Extractor) identifiers(links []string) []string {
	var seen *lru.Cache[string, struct{}]
	if e.cfg.Dedupe {
		// Size is validated in NewExtractor, so New cannot fail here.
		seen, _ = lru.New[string, struct{}](e.cfg.DedupeSize)
	}

	ids := make([]string, 0, len(links))
	for _, link := range links {
		id, err := e.ResolveIdentifier(link)
		if err != nil {
			e.logger.Warn("skipping link", "link", link, "error", err)
			continue
		}
		if seen != nil {
			if seen.Contains(id) {
				e.logger.Debug("skipping duplicate product", "asin", id)
				continue
			}
			seen.Add(id, struct{}{})
		}
		ids = append(ids, id)
	}
	return ids
}

// DiscoverLinks runs the search, applies the price filter and returns the
// href of every result link. A missing results list yields no links.
func (e *Extractor) DiscoverLinks(ctx context.Context, searchTerm string, filter models.SearchFilter) ([]string, error) {
	sel := e.cfg.Selectors

	if err := e.driver.Navigate(ctx, e.cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("failed to open storefront: %w", err)
	}

	box, err := e.driver.FindOne(ctx, sel.SearchBox)
	if err != nil {
		return nil, fmt.Errorf("failed to find search box: %w", err)
	}
	if err := box.Type(searchTerm); err != nil {
		return nil, fmt.Errorf("failed to type search term: %w", err)
	}
	if err := box.Submit(ctx); err != nil {
		return nil, fmt.Errorf("failed to submit search: %w", err)
	}
	if err := e.delay.Wait(ctx); err != nil {
		return nil, err
	}

	filtered := WithPriceFilter(e.driver.CurrentURL(), filter)
	e.logger.Info("opening filtered results", "url", filtered)

	if err := e.driver.Navigate(ctx, filtered); err != nil {
		return nil, fmt.Errorf("failed to open filtered results: %w", err)
	}
	if err := e.delay.Wait(ctx); err != nil {
		return nil, err
	}

	if _, err := e.driver.FindOne(ctx, sel.ResultsList); err != nil {
		e.logger.Warn("no result list on page", "error", err)
		return nil, nil
	}

	anchors, err := e.driver.FindMany(ctx, sel.ResultLink)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("failed to read result links", "error", err)
		return nil, nil
	}

	links := make([]string, 0, len(anchors))
	for _, a := range anchors {
		href, err := a.Attribute("href")
		if err != nil {
			e.logger.Debug("result link without href", "error", err)
			continue
		}
		links = append(links, href)
	}

	e.metrics.linksFound(len(links))

	return links, nil
}

func (e *Extractor) ResolveIdentifier(link string) (string, error) {
	return ResolveIdentifier(link, e.cfg.PathMarker, e.cfg.SuffixMarker)
}

// FetchRecord opens the product page for id and reads title, seller and
// price. Every unreadable field is reported in a *MissingFieldsError.
func (e *Extractor) FetchRecord(ctx context.Context, id string) (*models.ProductRecord, error) {
	e.logger.Info("fetching product", "asin", id)

	productURL := e.ProductURL(id)
	if err := e.driver.Navigate(ctx, e.pageURL(productURL)); err != nil {
		return nil, fmt.Errorf("failed to open product %s: %w", id, err)
	}
	if err := e.delay.Wait(ctx); err != nil {
		return nil, err
	}

	missing := &MissingFieldsError{ASIN: id}

	title, err := e.readText(ctx, e.cfg.Selectors.Title)
	if err != nil {
		missing.add("title", err)
	}

	seller, err := e.readText(ctx, e.cfg.Selectors.Seller)
	if err != nil {
		missing.add("seller", err)
	}

	price, err := e.readPrice(ctx)
	if err != nil {
		missing.add("price", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(missing.Fields) > 0 {
		e.logger.Warn("product fields unreadable", "asin", id, "url", e.driver.CurrentURL(), "error", missing)
		return nil, missing
	}

	return &models.ProductRecord{
		ASIN:   id,
		URL:    productURL,
		Title:  title,
		Seller: seller,
		Price:  price,
	}, nil
}

func (e *Extractor) readText(ctx context.Context, sel browser.Selector) (string, error) {
	el, err := e.driver.FindOne(ctx, sel)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", sel, ErrEmptyField)
	}
	return text, nil
}

// readPrice prefers the primary price block. Without it, a product listed as
// available falls back to the offer listing price.
func (e *Extractor) readPrice(ctx context.Context) (float64, error) {
	sel := e.cfg.Selectors

	raw, err := e.readText(ctx, sel.Price)
	if err == nil {
		return e.prices.ParsePrice(raw)
	}
	if !errors.Is(err, browser.ErrElementNotFound) {
		return 0, err
	}

	availability, err := e.readText(ctx, sel.Availability)
	if err != nil {
		return 0, fmt.Errorf("no price and no availability: %w", err)
	}
	if !strings.Contains(availability, e.cfg.AvailableMarker) {
		return 0, fmt.Errorf("%q: %w", availability, ErrUnavailable)
	}

	raw, err = e.readText(ctx, sel.AltPrice)
	if err != nil {
		return 0, fmt.Errorf("no offer price: %w", err)
	}
	if e.cfg.Currency != "" {
		idx := strings.Index(raw, e.cfg.Currency)
		if idx < 0 {
			return 0, fmt.Errorf("%q: %w", raw, parser.ErrPriceNotFound)
		}
		raw = raw[idx:]
	}

	return e.prices.ParsePrice(raw)
}

func (e *Extractor) ProductURL(id string) string {
	return strings.TrimRight(e.cfg.BaseURL, "/") + e.cfg.PathMarker + id
}

func (e *Extractor) pageURL(productURL string) string {
	if e.cfg.Language == "" {
		return productURL
	}
	return productURL + "?language=" + url.QueryEscape(e.cfg.Language)
}

// WithPriceFilter appends the storefront price range parameter, in minor
// currency units, to a results URL.
func WithPriceFilter(resultsURL string, filter models.SearchFilter) string {
	sep := "?"
	if strings.Contains(resultsURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%srh=p_36%%3A%d-%d", resultsURL, sep, minorUnits(filter.Min), minorUnits(filter.Max))
}

func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
