package browser

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrElementNotFound   = errors.New("element not found")
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrNoPage            = errors.New("no page loaded")
)

// Driver is the capability set the extractor needs from a browser session.
// A Driver is owned by a single run and must not be shared between goroutines.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL() string
	FindOne(ctx context.Context, sel Selector) (Element, error)
	FindMany(ctx context.Context, sel Selector) ([]Element, error)
	Close() error
}

type Element interface {
	Text() (string, error)
	Attribute(name string) (string, error)
	Type(text string) error
	// Submit presses Enter on the element.
	Submit(ctx context.Context) error
}

type By int

const (
	ByID By = iota
	ByClass
	ByCSS
	ByXPath
)

func (b By) String() string {
	switch b {
	case ByID:
		return "id"
	case ByClass:
		return "class"
	case ByCSS:
		return "css"
	case ByXPath:
		return "xpath"
	default:
		return "unknown"
	}
}

type Selector struct {
	By    By
	Value string
}

func ID(id string) Selector { return Selector{By: ByID, Value: id} }
func Class(names string) Selector { return Selector{By: ByClass, Value: names} }
func CSS(query string) Selector { return Selector{By: ByCSS, Value: query} }
func XPath(query string) Selector { return Selector{By: ByXPath, Value: query} }

func (s Selector) String() string {
	return s.By.String() + "=" + s.Value
}

// CSS renders ID and class selectors as CSS. A space separated class list
// means an element carrying all of the classes. XPath selectors return "".
func (s Selector) CSS() string {
	switch s.By {
	case ByID:
		return `[id="` + s.Value + `"]`
	case ByClass:
		fields := strings.Fields(s.Value)
		if len(fields) == 0 {
			return ""
		}
		return "." + strings.Join(fields, ".")
	case ByCSS:
		return s.Value
	default:
		return ""
	}
}
