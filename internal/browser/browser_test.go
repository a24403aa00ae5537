package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if !opts.IgnoreHTTPSErrors {
		t.Error("Expected certificate errors to be ignored by default")
	}

	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.Locale != "en-GB" {
		t.Errorf("Expected locale to be en-GB, got %s", opts.Locale)
	}
}

func TestSelectorCSS(t *testing.T) {
	tests := []struct {
		name     string
		sel      Selector
		expected string
	}{
		{"ID", ID("twotabsearchtextbox"), `[id="twotabsearchtextbox"]`},
		{"Single class", Class("s-result-list"), ".s-result-list"},
		{"Compound class", Class("a-size-large product-title-word-break"), ".a-size-large.product-title-word-break"},
		{"Raw CSS", CSS("span.a-price"), "span.a-price"},
		{"XPath has no CSS form", XPath("//a[@id='bylineInfo']"), ""},
		{"Blank class", Class("   "), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.sel.CSS())
		})
	}
}

func TestPlaywrightSelector(t *testing.T) {
	assert.Equal(t, "xpath=//a[@id = 'bylineInfo']", playwrightSelector(XPath("//a[@id = 'bylineInfo']")))
	assert.Equal(t, `[id="availability"]`, playwrightSelector(ID("availability")))
	assert.Equal(t, "id=productTitle", ID("productTitle").String())
}
