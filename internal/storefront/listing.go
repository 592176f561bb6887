// Package storefront speaks the upstream store's formats: it builds listing
// page URLs, extracts item stubs from listing HTML, and decodes per-item
// detail responses.
package storefront

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

const (
	listingRowSelector  = "#search_resultsRows > a"
	listingIDAttr       = "data-ds-appid"
	listingDateSelector = ".search_released"
)

// ListingURL returns the URL of the given listing page.
func ListingURL(base string, page int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseListing extracts item stubs from a listing page. Rows whose id is not
// a single integer (bundles list several) are skipped.
func ParseListing(body []byte) ([]release.CatalogItemStub, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	var items []release.CatalogItemStub
	doc.Find(listingRowSelector).Each(func(_ int, row *goquery.Selection) {
		rawID, ok := row.Attr(listingIDAttr)
		if !ok {
			return
		}
		id, err := strconv.Atoi(strings.TrimSpace(rawID))
		if err != nil || id <= 0 {
			return
		}
		items = append(items, release.CatalogItemStub{
			ID:              id,
			ReleaseDateText: strings.TrimSpace(row.Find(listingDateSelector).First().Text()),
		})
	})
	return items, nil
}
