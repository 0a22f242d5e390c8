package books_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-agent/internal/books"
	"inventory-agent/internal/model"
)

// fakeBooks is a minimal in-process stand-in for the backend API:
// a token endpoint plus whatever handler the test installs.
type fakeBooks struct {
	srv        *httptest.Server
	mux        *http.ServeMux
	tokenCalls int
	apiCalls   int
	nextToken  int
}

func newFakeBooks(t *testing.T) *fakeBooks {
	t.Helper()
	f := &fakeBooks{mux: http.NewServeMux()}
	f.mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		f.nextToken++
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": fmt.Sprintf("token-%d", f.nextToken),
		})
	})
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBooks) client() *books.Client {
	return books.NewClient(books.Config{
		ClientID:       "id",
		ClientSecret:   "secret",
		RefreshToken:   "refresh",
		OrganizationID: "org-42",
		BaseURL:        f.srv.URL + "/api",
		AuthURL:        f.srv.URL + "/oauth/v2/token",
	}, nil)
}

func TestClient_RefreshesExpiredTokenAndReplaysOnce(t *testing.T) {
	f := newFakeBooks(t)
	f.mux.HandleFunc("/api/contacts", func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls++
		if r.Header.Get("Authorization") != "Bearer token-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]string{{"contact_id": "c-1", "contact_name": "eBay"}},
		})
	})

	c := f.client()
	id, err := c.FindOrCreateVendor(context.Background(), "ebay store")

	require.NoError(t, err)
	assert.Equal(t, "c-1", id)
	// First attempt with token-1 hits 401, a second refresh yields
	// token-2 and the replay succeeds.
	assert.Equal(t, 2, f.apiCalls)
	assert.Equal(t, 2, f.tokenCalls)
	assert.True(t, c.Available())
}

func TestClient_PersistentUnauthorizedFails(t *testing.T) {
	f := newFakeBooks(t)
	f.mux.HandleFunc("/api/contacts", func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := f.client().FindOrCreateVendor(context.Background(), "TCGPlayer")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, 2, f.apiCalls, "exactly one replay after a 401")
}

func TestClient_NetworkErrorDegradesSession(t *testing.T) {
	f := newFakeBooks(t)
	c := f.client()
	f.srv.Close()

	_, err := c.FindOrCreateVendor(context.Background(), "Amazon")

	require.ErrorIs(t, err, books.ErrBackendUnavailable)
	assert.False(t, c.Available())

	// Every later call short-circuits without touching the network.
	_, err = c.GetItemDetails(context.Background(), "item-1")
	require.ErrorIs(t, err, books.ErrBackendUnavailable)
}

func TestClient_SendsOrganizationID(t *testing.T) {
	f := newFakeBooks(t)
	var gotOrg string
	f.mux.HandleFunc("/api/items/item-9", func(w http.ResponseWriter, r *http.Request) {
		gotOrg = r.URL.Query().Get("organization_id")
		json.NewEncoder(w).Encode(map[string]any{
			"item": map[string]any{"item_id": "item-9", "available_stock": 3, "stock_rate": "12.50"},
		})
	})

	details, err := f.client().GetItemDetails(context.Background(), "item-9")

	require.NoError(t, err)
	assert.Equal(t, "org-42", gotOrg)
	assert.Equal(t, float64(3), details.AvailableStock)
	assert.Equal(t, "12.5", details.StockRate.String())
}

func TestFindOrCreateVendor_CachesAcrossCalls(t *testing.T) {
	f := newFakeBooks(t)
	searches := 0
	f.mux.HandleFunc("/api/contacts", func(w http.ResponseWriter, r *http.Request) {
		searches++
		json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]string{{"contact_id": "v-7", "contact_name": "tcgplayer"}},
		})
	})

	c := f.client()
	ctx := context.Background()
	id1, err := c.FindOrCreateVendor(ctx, "TCGPlayer order")
	require.NoError(t, err)
	id2, err := c.FindOrCreateVendor(ctx, "tcgplayer.com")
	require.NoError(t, err)

	// Name matching against the search result is case-insensitive and
	// both inputs standardize to the same vendor.
	assert.Equal(t, "v-7", id1)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, searches)
}

func TestFindOrCreateCustomer_CreatesWhenMissing(t *testing.T) {
	f := newFakeBooks(t)
	var createPayload map[string]string
	f.mux.HandleFunc("/api/contacts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]any{"contacts": []map[string]string{}})
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&createPayload))
		json.NewEncoder(w).Encode(map[string]any{
			"contact": map[string]string{"contact_id": "cust-1", "contact_name": createPayload["contact_name"]},
		})
	})

	id, err := f.client().FindOrCreateCustomer(context.Background(), "facebook", "buyer@example.com")

	require.NoError(t, err)
	assert.Equal(t, "cust-1", id)
	assert.Equal(t, "Facebook Marketplace", createPayload["contact_name"])
	assert.Equal(t, "customer", createPayload["contact_type"])
	assert.Equal(t, "buyer@example.com", createPayload["email"])
}

func TestFindOrCreateItem_CreatesInventoryTracked(t *testing.T) {
	f := newFakeBooks(t)
	var createPayload map[string]any
	f.mux.HandleFunc("/api/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]any{"items": []map[string]string{}})
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&createPayload))
		json.NewEncoder(w).Encode(map[string]any{
			"item": map[string]string{"item_id": "item-55"},
		})
	})

	c := books.NewClient(books.Config{
		RefreshToken:       "refresh",
		OrganizationID:     "org-42",
		InventoryAccountID: "acc-inv",
		COGSAccountID:      "acc-cogs",
		SalesAccountID:     "acc-sales",
		BaseURL:            f.srv.URL + "/api",
		AuthURL:            f.srv.URL + "/oauth/v2/token",
	}, nil)

	id, err := c.FindOrCreateItem(context.Background(), "BB-AB12CD", "Booster Box")

	require.NoError(t, err)
	assert.Equal(t, "item-55", id)
	assert.Equal(t, true, createPayload["is_inventory_tracked"])
	assert.Equal(t, "inventory", createPayload["item_type"])
	assert.Equal(t, float64(0), createPayload["opening_stock"])
	assert.Equal(t, "acc-inv", createPayload["inventory_account_id"])
	assert.Equal(t, "acc-cogs", createPayload["account_id"])
	assert.Equal(t, "acc-sales", createPayload["income_account_id"])
}

func TestDelete_UsesDocumentPath(t *testing.T) {
	f := newFakeBooks(t)
	var gotPath, gotMethod string
	f.mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusOK)
	})

	err := f.client().Delete(context.Background(), model.ArtifactInvoice, "inv-3")

	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/invoices/inv-3", gotPath)
}

func TestStandardizeNames(t *testing.T) {
	cases := []struct {
		in, vendor, channel string
	}{
		{"", "Unknown Vendor", "Direct Sales"},
		{"EBAY Inc", "eBay", "eBay Sales"},
		{"Amazon Marketplace", "Amazon", "Amazon Sales"},
		{"facebook", "facebook", "Facebook Marketplace"},
		{"Local Card Shop", "Local Card Shop", "Local Card Shop"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.vendor, books.StandardizeVendorName(tc.in), "vendor %q", tc.in)
		assert.Equal(t, tc.channel, books.StandardizeChannelName(tc.in), "channel %q", tc.in)
	}
}
