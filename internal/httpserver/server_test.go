package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"gulf-store/internal/admin"
	"gulf-store/internal/auth"
	"gulf-store/internal/cart"
	"gulf-store/internal/domain"
	"gulf-store/internal/kv"
	"gulf-store/internal/notify"
	"gulf-store/internal/pricing"
	"gulf-store/internal/stats"
	"gulf-store/internal/storefront"
	"gulf-store/internal/tables"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	store  *kv.Store
	live   *admin.LiveVisitors
	client *http.Client
}

func newTestServer(t *testing.T, basePath string) *testServer {
	t.Helper()
	return newTestServerWithWindow(t, basePath, time.Hour)
}

// newTestServerWithWindow builds a server whose search recorder commits
// after window of idle typing.
func newTestServerWithWindow(t *testing.T, basePath string, window time.Duration) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notices := notify.NewRecorder(0)
	store := kv.New(kv.NewMemory(), logger, kv.WithNotifier(notices))

	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	authenticator, err := auth.NewBcrypt("admin", hash)
	require.NoError(t, err)

	sf := storefront.New(storefront.Deps{
		Store:    store,
		Cart:     cart.New(notices),
		Checkout: cart.NewCheckout(store, logger, cart.WithDelay(0)),
		Tracker:  stats.NewTracker(store, logger, nil),
		Searches: stats.NewSearchRecorder(store, logger, nil, window),
		Notices:  notices,
		Logger:   logger,
	})
	t.Cleanup(sf.Close)

	live := admin.NewLiveVisitors(time.Hour, func(n int) int { return 0 })
	srv := New(":0", logger, nil, Dependencies{
		Store:      store,
		Storefront: sf,
		Admin:      admin.New(store, logger),
		Session:    auth.NewSession(authenticator, store, logger),
		Live:       live,
	}, basePath)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(live.Stop)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Transport: ts.Client().Transport, Jar: jar}
	return &testServer{Server: ts, store: store, live: live, client: client}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return ts.send(t, ts.client, method, path, body, nil)
}

func (ts *testServer) send(t *testing.T, client *http.Client, method, path string, body any, header http.Header) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) login(t *testing.T) {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/admin/login", auth.Credentials{Username: "admin", Password: "secret"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, "")
	resp := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, resp)["status"])
}

func TestBasePathIsRequired(t *testing.T) {
	ts := newTestServer(t, "shop/")
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/shop/healthz", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/healthz", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/shopping/healthz", nil).StatusCode)
}

func TestProductsHideSupplierURL(t *testing.T) {
	ts := newTestServer(t, "")
	ctx := t.Context()
	require.NoError(t, kv.Save(ctx, ts.store, tables.Products, []domain.Product{
		{ID: "p1", Name: "Watch", Category: "إلكترونيات", PriceUSD: 10, AvailableCountries: []string{"SA"}, SupplierURL: "https://supplier/p1"},
		{ID: "p2", Name: "Oud", Category: "عطور", PriceUSD: 20, AvailableCountries: []string{"KW"}},
	}))

	resp := ts.do(t, http.MethodGet, "/api/products?q=watch", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "supplier")

	var products []domain.Product
	require.NoError(t, json.Unmarshal(raw, &products))
	require.Len(t, products, 1)
	assert.Equal(t, "p1", products[0].ID)
}

func TestSelectCountry(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodPut, "/api/country", map[string]string{"code": "kw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "KWD", decodeBody[domain.CountryConfig](t, resp).Currency)

	resp = ts.do(t, http.MethodPut, "/api/country", map[string]string{"code": "EG"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCartFlow(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodPost, "/api/cart", map[string]string{"productId": "1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeBody[cartView](t, resp)
	assert.Equal(t, 1, view.Count)
	require.Len(t, view.Notices, 1)
	assert.Contains(t, view.Notices[0], "تمت إضافة")

	resp = ts.do(t, http.MethodPatch, "/api/cart/1", map[string]int{"delta": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, decodeBody[cartView](t, resp).Count)

	resp = ts.do(t, http.MethodGet, "/api/cart/totals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	totals := decodeBody[pricing.Totals](t, resp)
	assert.Equal(t, 3, totals.Items)
	assert.InDelta(t, 3*(80+5)*3.75, totals.Total, 0.01)

	resp = ts.do(t, http.MethodPost, "/api/cart", map[string]string{"productId": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/cart/1", nil)
	assert.Equal(t, 0, decodeBody[cartView](t, resp).Count)
}

func TestCheckoutValidation(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodPost, "/api/checkout", cart.Form{Name: "a", Phone: "1", Address: "x", Method: domain.PaymentCard})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, []string{"items"}, decodeBody[errorResponse](t, resp).Fields)

	ts.do(t, http.MethodPost, "/api/cart", map[string]string{"productId": "1"})
	resp = ts.do(t, http.MethodPost, "/api/checkout", cart.Form{Name: "a", Phone: "1", Address: "x", Method: domain.PaymentBank})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, []string{"receipt"}, decodeBody[errorResponse](t, resp).Fields)
	assert.Empty(t, kv.Load(t.Context(), ts.store, tables.Orders))
}

func TestCheckoutFormEncoded(t *testing.T) {
	ts := newTestServer(t, "")
	ctx := t.Context()
	require.NoError(t, kv.Save(ctx, ts.store, tables.Products, []domain.Product{
		{ID: "p1", Name: "Watch", PriceUSD: 10, AvailableCountries: []string{"SA"}, ShippingRates: map[string]float64{"SA": 0}, SupplierURL: "https://supplier/p1"},
	}))
	ts.do(t, http.MethodPost, "/api/cart", map[string]string{"productId": "p1"})

	form := url.Values{"name": {"سالم"}, "phone": {"0500"}, "address": {"الرياض"}, "method": {"card"}}
	resp, err := ts.Client().Post(ts.URL+"/api/checkout", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	order := decodeBody[domain.Order](t, resp)
	assert.True(t, strings.HasPrefix(order.ID, "ORD-"))
	require.Len(t, order.Items, 1)
	assert.Empty(t, order.Items[0].SupplierURL)

	stored := kv.Load(ctx, ts.store, tables.Orders)
	require.Len(t, stored, 1)
	assert.Equal(t, "https://supplier/p1", stored[0].Items[0].SupplierURL)
	assert.Equal(t, 0, decodeBody[cartView](t, ts.do(t, http.MethodGet, "/api/cart", nil)).Count)
}

func TestReceiptUpload(t *testing.T) {
	ts := newTestServer(t, "")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "receipt.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := ts.Client().Post(ts.URL+"/api/receipts", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, strings.HasPrefix(decodeBody[map[string]string](t, resp)["reference"], "data:image/png;base64,"))

	resp = ts.do(t, http.MethodPost, "/api/receipts", map[string]string{"file": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNarrationDisabled(t *testing.T) {
	ts := newTestServer(t, "")
	resp := ts.do(t, http.MethodPost, "/api/products/1/narration", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestVisitUsesReferer(t *testing.T) {
	ts := newTestServer(t, "")
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/visits", nil)
	require.NoError(t, err)
	req.Header.Set("Referer", "https://www.instagram.com/p/1")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Instagram", decodeBody[map[string]string](t, resp)["source"])
	assert.Equal(t, 1, kv.Load(t.Context(), ts.store, tables.Stats).Sources["Instagram"])
}

func TestWelcomeFlag(t *testing.T) {
	ts := newTestServer(t, "")
	assert.False(t, decodeBody[map[string]bool](t, ts.do(t, http.MethodGet, "/api/welcome", nil))["seen"])
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/api/welcome/seen", nil).StatusCode)
	assert.True(t, decodeBody[map[string]bool](t, ts.do(t, http.MethodGet, "/api/welcome", nil))["seen"])
}

func TestContactRedirect(t *testing.T) {
	ts := newTestServer(t, "")
	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.Get(ts.URL + "/contact/whatsapp")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://wa.me/966500000000", resp.Header.Get("Location"))
}

func TestAdminRequiresLogin(t *testing.T) {
	ts := newTestServer(t, "")
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/admin/orders", nil).StatusCode)

	resp := ts.do(t, http.MethodPost, "/admin/login", auth.Credentials{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/admin/orders", nil).StatusCode)

	ts.login(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/admin/orders", nil).StatusCode)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/admin/logout", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/admin/orders", nil).StatusCode)
}

func TestAdminSessionIsPerClient(t *testing.T) {
	ts := newTestServer(t, "")
	ts.login(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/admin/orders", nil).StatusCode)

	other := &http.Client{Transport: ts.Client().Transport}
	resp := ts.send(t, other, http.MethodGet, "/admin/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged := http.Header{"Cookie": {adminCookie + "=not-a-session"}}
	resp = ts.send(t, other, http.MethodGet, "/admin/orders", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/admin/orders", nil).StatusCode)
}

func TestAdminLoginSetsHttpOnlyCookie(t *testing.T) {
	ts := newTestServer(t, "")
	resp := ts.do(t, http.MethodPost, "/admin/login", auth.Credentials{Username: "admin", Password: "secret"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == adminCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.NotEmpty(t, session.Value)
	assert.True(t, session.HttpOnly)
}

func TestAdminProductLifecycle(t *testing.T) {
	ts := newTestServer(t, "")
	ts.login(t)

	resp := ts.do(t, http.MethodPost, "/admin/products", domain.Product{Name: "بخور", PriceUSD: 15, Category: "بخور"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[domain.Product](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Len(t, created.AvailableCountries, 6)

	created.PriceUSD = 18
	resp = ts.do(t, http.MethodPut, "/admin/products/"+created.ID, created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 18.0, decodeBody[domain.Product](t, resp).PriceUSD)

	resp = ts.do(t, http.MethodPut, "/admin/products/nope", created)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/admin/products", domain.Product{Name: " ", PriceUSD: 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/admin/products/"+created.ID, nil).StatusCode)
	assert.Len(t, decodeBody[[]domain.Product](t, ts.do(t, http.MethodGet, "/admin/products", nil)), 2)
}

func TestAdminCategories(t *testing.T) {
	ts := newTestServer(t, "")
	ts.login(t)

	resp := ts.do(t, http.MethodPost, "/admin/categories", map[string]string{"name": " ساعات "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decodeBody[[]string](t, resp), "ساعات")

	resp = ts.do(t, http.MethodDelete, "/admin/categories/"+url.PathEscape(domain.AllCategory), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/admin/categories/"+url.PathEscape("ساعات"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, decodeBody[[]string](t, resp), "ساعات")
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	ts := newTestServer(t, "")
	ts.login(t)

	settings := domain.StoreSettings{WhatsAppNumber: "+965 1234", BankAccountDetails: "KFH"}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/admin/settings", settings).StatusCode)
	assert.Equal(t, settings, decodeBody[domain.StoreSettings](t, ts.do(t, http.MethodGet, "/admin/settings", nil)))

	info := decodeBody[storefront.PaymentInfo](t, ts.do(t, http.MethodGet, "/api/payment", nil))
	assert.Equal(t, "KFH", info.BankAccountDetails)
	assert.False(t, info.HasPaymentLink)
}

func TestDashboardStartsLiveTicker(t *testing.T) {
	ts := newTestServer(t, "")
	ts.login(t)

	resp := ts.do(t, http.MethodGet, "/admin/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ts.live.Running())

	resp = ts.do(t, http.MethodGet, "/admin/live", nil)
	live := decodeBody[liveView](t, resp)
	assert.Equal(t, 5, live.Visitors)
	assert.True(t, live.Running)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/admin/live", nil).StatusCode)
	assert.False(t, ts.live.Running())
}

func TestSearchWithoutStreamHeaderCommitsLastTerm(t *testing.T) {
	ts := newTestServerWithWindow(t, "", 300*time.Millisecond)

	for _, q := range []string{"abc", "abcd", "abcde"} {
		resp := ts.do(t, http.MethodPost, "/api/search", map[string]string{"query": q})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	want := domain.SearchStats{"abcde": 1}
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, kv.Load(t.Context(), ts.store, tables.SearchStats))
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, want, kv.Load(t.Context(), ts.store, tables.SearchStats))
}

func TestSearchStreamsAreIndependent(t *testing.T) {
	ts := newTestServerWithWindow(t, "", 300*time.Millisecond)

	first := http.Header{streamHeader: {"tab-1"}}
	second := http.Header{streamHeader: {"tab-2"}}
	ts.send(t, ts.client, http.MethodPost, "/api/search", map[string]string{"query": "oud"}, first)
	ts.send(t, ts.client, http.MethodPost, "/api/search", map[string]string{"query": "watch"}, second)

	want := domain.SearchStats{"oud": 1, "watch": 1}
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, kv.Load(t.Context(), ts.store, tables.SearchStats))
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCartTotalsCarryCountryPrecision(t *testing.T) {
	ts := newTestServer(t, "")

	ts.do(t, http.MethodPost, "/api/cart", map[string]string{"productId": "1"})
	resp := ts.do(t, http.MethodPatch, "/api/cart/1", map[string]int{"delta": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/cart/totals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	totals := decodeBody[pricing.Totals](t, resp)
	assert.Equal(t, "637.50", totals.TotalDisplay)
	assert.Equal(t, "600.00", totals.SubtotalLocalDisplay)
	assert.Equal(t, "37.50", totals.ShippingLocalDisplay)

	resp = ts.do(t, http.MethodPut, "/api/country", map[string]string{"code": "KW"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/cart/totals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	totals = decodeBody[pricing.Totals](t, resp)
	assert.Equal(t, "55.800", totals.TotalDisplay)
	assert.Equal(t, "49.600", totals.SubtotalLocalDisplay)
	assert.Equal(t, "6.200", totals.ShippingLocalDisplay)
}

func TestProductsCarryLocalPrices(t *testing.T) {
	ts := newTestServer(t, "")
	resp := ts.do(t, http.MethodPut, "/api/country", map[string]string{"code": "KW"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := decodeBody[[]storefront.ProductView](t, resp)
	require.NotEmpty(t, products)
	assert.Equal(t, "1", products[0].ID)
	assert.Equal(t, "KWD", products[0].Currency)
	assert.Equal(t, "24.800", products[0].UnitPriceDisplay)
	assert.Equal(t, "3.100", products[0].UnitShippingDisplay)

	resp = ts.do(t, http.MethodGet, "/api/products?group=category", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	groups := decodeBody[[]storefront.ProductGroup](t, resp)
	require.NotEmpty(t, groups)
	assert.Equal(t, "إلكترونيات", groups[0].Category)
	require.NotEmpty(t, groups[0].Products)
	assert.Equal(t, "24.800", groups[0].Products[0].UnitPriceDisplay)
}
