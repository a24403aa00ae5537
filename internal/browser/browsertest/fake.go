// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"fmt"
	"net/url"

	"github.com/maltedev/amazon-price-tracker/internal/browser"
)

// Page maps selectors to the elements they match on one URL.
type Page map[browser.Selector][]*Element

type Element struct {
	TextValue string
	Attrs     map[string]string
	// SubmitURL receives the typed text, query-escaped, when the element is submitted.
	SubmitURL string

	driver *Driver
	typed  string
}

func Text(text string) *Element {
	return &Element{TextValue: text}
}

func Link(href string) *Element {
	return &Element{Attrs: map[string]string{"href": href}}
}

func SearchBox(submitURL string) *Element {
	return &Element{SubmitURL: submitURL}
}

func (e *Element) Text() (string, error) {
	return e.TextValue, nil
}

func (e *Element) Attribute(name string) (string, error) {
	value, ok := e.Attrs[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, browser.ErrAttributeNotFound)
	}
	return value, nil
}

func (e *Element) Type(text string) error {
	e.typed += text
	return nil
}

func (e *Element) Submit(ctx context.Context) error {
	if e.SubmitURL == "" {
		return fmt.Errorf("element has no form")
	}
	return e.driver.Navigate(ctx, e.SubmitURL+url.QueryEscape(e.typed))
}

// Driver serves registered pages by exact URL.
type Driver struct {
	Pages       map[string]Page
	NavigateErr map[string]error
	Visited     []string
	Closed      bool
	CloseCount  int

	current string
}

func New() *Driver {
	return &Driver{
		Pages:       make(map[string]Page),
		NavigateErr: make(map[string]error),
	}
}

func (d *Driver) AddPage(rawURL string, page Page) *Driver {
	d.Pages[rawURL] = page
	return d
}

func (d *Driver) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.Visited = append(d.Visited, rawURL)

	if err := d.NavigateErr[rawURL]; err != nil {
		return err
	}
	if _, ok := d.Pages[rawURL]; !ok {
		return fmt.Errorf("no page registered for %s", rawURL)
	}

	d.current = rawURL
	return nil
}

func (d *Driver) CurrentURL() string {
	return d.current
}

func (d *Driver) FindOne(ctx context.Context, sel browser.Selector) (browser.Element, error) {
	elements, err := d.FindMany(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("%s: %w", sel, browser.ErrElementNotFound)
	}
	return elements[0], nil
}

func (d *Driver) FindMany(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, ok := d.Pages[d.current]
	if !ok {
		return nil, browser.ErrNoPage
	}

	matches := page[sel]
	elements := make([]browser.Element, 0, len(matches))
	for _, e := range matches {
		e.driver = d
		elements = append(elements, e)
	}
	return elements, nil
}

func (d *Driver) Close() error {
	d.Closed = true
	d.CloseCount++
	return nil
}
