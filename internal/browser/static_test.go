package browser

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	homePage = `<html><body>
	<form action="/s" method="get">
		<input type="text" id="twotabsearchtextbox" name="field-keywords" value="">
		<input type="hidden" name="i" value="aps">
		<input type="submit" value="Go">
	</form>
	</body></html>`

	resultsPage = `<html><body>
	<div class="s-main-slot s-result-list">
		<a class="a-link-normal s-no-outline" href="/Green-Tea/dp/B000TEA001/ref=sr_1_1">one</a>
		<a class="a-link-normal s-no-outline" href="https://shop.test/Black-Tea/dp/B000TEA002/ref=sr_1_2">two</a>
		<a class="a-link-normal" href="/other">ignored</a>
	</div>
	</body></html>`

	productPage = `<html><body>
	<span id="productTitle" class="a-size-large product-title-word-break">  Green Tea 50 bags  </span>
	<a id="bylineInfo" href="/stores/Tetley">Visit the Tetley Store</a>
	<span id="priceblock_ourprice"><span>£1,234</span><span>99</span></span>
	<script>var ignored = "text";</script>
	</body></html>`
)

func newMockedSession(t *testing.T) (*StaticSession, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://shop.test/", htmlResponder(homePage))
	transport.RegisterResponder("GET", "https://shop.test/s?field-keywords=green+tea&i=aps", htmlResponder(resultsPage))
	transport.RegisterResponder("GET", "https://shop.test/dp/B000TEA001", htmlResponder(productPage))

	s := NewStaticSession(StaticOptions{Transport: transport}, slog.Default())
	return s, transport
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func TestStaticSessionSearchFlow(t *testing.T) {
	ctx := context.Background()
	s, _ := newMockedSession(t)
	defer s.Close()

	require.NoError(t, s.Navigate(ctx, "https://shop.test/"))
	assert.Equal(t, "https://shop.test/", s.CurrentURL())

	box, err := s.FindOne(ctx, ID("twotabsearchtextbox"))
	require.NoError(t, err)
	require.NoError(t, box.Type("green tea"))
	require.NoError(t, box.Submit(ctx))

	assert.Equal(t, "https://shop.test/s?field-keywords=green+tea&i=aps", s.CurrentURL())

	_, err = s.FindOne(ctx, Class("s-result-list"))
	require.NoError(t, err)

	links, err := s.FindMany(ctx, XPath("//a[@class = 'a-link-normal s-no-outline']"))
	require.NoError(t, err)
	require.Len(t, links, 2)

	first, err := links[0].Attribute("href")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/Green-Tea/dp/B000TEA001/ref=sr_1_1", first)

	second, err := links[1].Attribute("href")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/Black-Tea/dp/B000TEA002/ref=sr_1_2", second)
}

func TestStaticSessionProductFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newMockedSession(t)

	require.NoError(t, s.Navigate(ctx, "https://shop.test/dp/B000TEA001"))

	title, err := s.FindOne(ctx, Class("a-size-large product-title-word-break"))
	require.NoError(t, err)
	text, err := title.Text()
	require.NoError(t, err)
	assert.Equal(t, "Green Tea 50 bags", text)

	seller, err := s.FindOne(ctx, XPath("//a[@id = 'bylineInfo']"))
	require.NoError(t, err)
	text, err = seller.Text()
	require.NoError(t, err)
	assert.Equal(t, "Visit the Tetley Store", text)

	price, err := s.FindOne(ctx, ID("priceblock_ourprice"))
	require.NoError(t, err)
	text, err = price.Text()
	require.NoError(t, err)
	assert.Equal(t, "£1,234\n99", text)

	_, err = s.FindOne(ctx, ID("availability"))
	assert.True(t, errors.Is(err, ErrElementNotFound))

	_, err = title.Attribute("data-missing")
	assert.True(t, errors.Is(err, ErrAttributeNotFound))
}

func TestStaticSessionErrors(t *testing.T) {
	ctx := context.Background()
	s, transport := newMockedSession(t)
	transport.RegisterResponder("GET", "https://shop.test/missing", httpmock.NewStringResponder(404, "not found"))

	_, err := s.FindOne(ctx, ID("productTitle"))
	assert.True(t, errors.Is(err, ErrNoPage))

	err = s.Navigate(ctx, "https://shop.test/missing")
	assert.Error(t, err)

	require.NoError(t, s.Navigate(ctx, "https://shop.test/dp/B000TEA001"))
	title, err := s.FindOne(ctx, ID("productTitle"))
	require.NoError(t, err)
	assert.Error(t, title.Submit(ctx), "title is not inside a form")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.Navigate(cancelled, "https://shop.test/"), context.Canceled)
}
