package books

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// ItemDetails is the live backend view of an item, read at shipment
// time so COGS reflects the backend's current stock rate.
type ItemDetails struct {
	ItemID         string          `json:"item_id"`
	Name           string          `json:"name"`
	SKU            string          `json:"sku"`
	AvailableStock float64         `json:"available_stock"`
	StockRate      decimal.Decimal `json:"stock_rate"`
}

type contact struct {
	ContactID   string `json:"contact_id"`
	ContactName string `json:"contact_name"`
}

// StandardizeVendorName maps common marketplace spellings onto the
// canonical vendor names already present in the backend. Empty input
// falls back to "Unknown Vendor".
func StandardizeVendorName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Unknown Vendor"
	}
	lower := strings.ToLower(name)
	for _, m := range vendorNames {
		if strings.Contains(lower, m.substr) {
			return m.standard
		}
	}
	return name
}

var vendorNames = []struct{ substr, standard string }{
	{"ebay", "eBay"},
	{"amazon", "Amazon"},
	{"tcgplayer", "TCGPlayer"},
	{"shopify", "Shopify"},
}

var channelNames = []struct{ substr, standard string }{
	{"ebay", "eBay Sales"},
	{"amazon", "Amazon Sales"},
	{"tcgplayer", "TCGPlayer Sales"},
	{"shopify", "Shopify Sales"},
	{"etsy", "Etsy Sales"},
	{"facebook", "Facebook Marketplace"},
	{"mercari", "Mercari Sales"},
}

// StandardizeChannelName maps a sales channel onto the customer name
// used for it in the backend. Empty input falls back to "Direct
// Sales".
func StandardizeChannelName(channel string) string {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return "Direct Sales"
	}
	lower := strings.ToLower(channel)
	for _, m := range channelNames {
		if strings.Contains(lower, m.substr) {
			return m.standard
		}
	}
	return channel
}

func (c *Client) cachedID(cache map[string]string, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := cache[key]
	return id, ok
}

func (c *Client) cacheID(cache map[string]string, key, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cache[key] = id
}

func (c *Client) findOrCreateContact(ctx context.Context, cache map[string]string, contactType, name, email string) (string, error) {
	if id, ok := c.cachedID(cache, name); ok {
		return id, nil
	}

	var search struct {
		Contacts []contact `json:"contacts"`
	}
	query := url.Values{"contact_type": {contactType}, "search_text": {name}}
	if err := c.request(ctx, "GET", "contacts", query, nil, &search); err != nil {
		return "", fmt.Errorf("search %s %q: %w", contactType, name, err)
	}
	for _, ct := range search.Contacts {
		if strings.EqualFold(ct.ContactName, name) {
			c.cacheID(cache, name, ct.ContactID)
			return ct.ContactID, nil
		}
	}

	payload := map[string]string{
		"contact_name": name,
		"contact_type": contactType,
		"company_name": name,
	}
	if email != "" {
		payload["email"] = email
	}
	var created struct {
		Contact contact `json:"contact"`
	}
	if err := c.request(ctx, "POST", "contacts", nil, payload, &created); err != nil {
		return "", fmt.Errorf("create %s %q: %w", contactType, name, err)
	}
	if c.log != nil {
		c.log.WithField("name", name).Infof("created backend %s", contactType)
	}
	c.cacheID(cache, name, created.Contact.ContactID)
	return created.Contact.ContactID, nil
}

// FindOrCreateVendor resolves a vendor name (standardized) to a
// backend contact id, creating the vendor on first use.
func (c *Client) FindOrCreateVendor(ctx context.Context, name string) (string, error) {
	return c.findOrCreateContact(ctx, c.vendors, "vendor", StandardizeVendorName(name), "")
}

// FindOrCreateCustomer resolves a sales channel to the backend
// customer representing it, creating the customer on first use.
func (c *Client) FindOrCreateCustomer(ctx context.Context, channel, email string) (string, error) {
	return c.findOrCreateContact(ctx, c.customers, "customer", StandardizeChannelName(channel), email)
}

// FindOrCreateItem resolves a SKU to a backend item id, creating an
// inventory-tracked item with the configured account mappings when it
// does not exist yet. Results are cached for the process lifetime.
func (c *Client) FindOrCreateItem(ctx context.Context, sku, name string) (string, error) {
	if sku == "" {
		return "", fmt.Errorf("find or create item: sku is required")
	}
	if id, ok := c.cachedID(c.items, sku); ok {
		return id, nil
	}

	var search struct {
		Items []struct {
			ItemID string `json:"item_id"`
		} `json:"items"`
	}
	if err := c.request(ctx, "GET", "items", url.Values{"sku": {sku}}, nil, &search); err != nil {
		return "", fmt.Errorf("search item %q: %w", sku, err)
	}
	if len(search.Items) > 0 {
		c.cacheID(c.items, sku, search.Items[0].ItemID)
		return search.Items[0].ItemID, nil
	}

	if name == "" {
		name = "Item " + sku
	}
	payload := map[string]any{
		"name":                 name,
		"sku":                  sku,
		"is_inventory_tracked": true,
		"opening_stock":        0,
		"opening_stock_rate":   0,
		"item_type":            "inventory",
	}
	if c.cfg.InventoryAccountID != "" {
		payload["inventory_account_id"] = c.cfg.InventoryAccountID
	}
	if c.cfg.COGSAccountID != "" {
		payload["account_id"] = c.cfg.COGSAccountID
	}
	if c.cfg.SalesAccountID != "" {
		payload["income_account_id"] = c.cfg.SalesAccountID
	}

	var created struct {
		Item struct {
			ItemID string `json:"item_id"`
		} `json:"item"`
	}
	if err := c.request(ctx, "POST", "items", nil, payload, &created); err != nil {
		return "", fmt.Errorf("create item %q: %w", sku, err)
	}
	if c.log != nil {
		c.log.WithFields(map[string]any{"sku": sku, "item_id": created.Item.ItemID}).Info("created backend item")
	}
	c.cacheID(c.items, sku, created.Item.ItemID)
	return created.Item.ItemID, nil
}

// GetItemDetails returns the backend's current stock and rate for an
// item.
func (c *Client) GetItemDetails(ctx context.Context, itemID string) (*ItemDetails, error) {
	var resp struct {
		Item ItemDetails `json:"item"`
	}
	if err := c.request(ctx, "GET", "items/"+itemID, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get item details %s: %w", itemID, err)
	}
	return &resp.Item, nil
}
