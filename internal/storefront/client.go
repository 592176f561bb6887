package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

// Client fetches per-item detail records from the appdetails endpoint.
type Client struct {
	fetcher   release.PageFetcher
	detailURL string
}

// NewClient creates a Client that issues requests through fetcher.
func NewClient(fetcher release.PageFetcher, detailURL string) (*Client, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if _, err := url.Parse(detailURL); err != nil || detailURL == "" {
		return nil, fmt.Errorf("invalid detail url %q", detailURL)
	}
	return &Client{
		fetcher:   fetcher,
		detailURL: detailURL,
	}, nil
}

type appDetailsEnvelope struct {
	Success bool            `json:"success"`
	Data    *appDetailsData `json:"data"`
}

type appDetailsData struct {
	Type             string          `json:"type"`
	Name             string          `json:"name"`
	SteamAppID       int             `json:"steam_appid"`
	ShortDescription string          `json:"short_description"`
	HeaderImage      string          `json:"header_image"`
	Platforms        map[string]bool `json:"platforms"`
	Genres           []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	} `json:"genres"`
	ReleaseDate struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
}

// FetchDetail implements release.DetailClient. An id the endpoint does not
// know yields a record with Success=false rather than an error.
func (c *Client) FetchDetail(ctx context.Context, id int) (release.DetailRecord, error) {
	page, err := c.fetcher.Fetch(ctx, c.requestURL(id))
	if err != nil {
		return release.DetailRecord{}, fmt.Errorf("fetch detail %d: %w", id, err)
	}
	var envelopes map[string]appDetailsEnvelope
	if err := json.Unmarshal(page.Body, &envelopes); err != nil {
		return release.DetailRecord{}, fmt.Errorf("decode detail %d: %w", id, err)
	}
	env, ok := envelopes[strconv.Itoa(id)]
	if !ok || !env.Success || env.Data == nil {
		return release.DetailRecord{ID: id}, nil
	}
	return toRecord(id, env.Data), nil
}

func (c *Client) requestURL(id int) string {
	u, _ := url.Parse(c.detailURL)
	q := u.Query()
	q.Set("appids", strconv.Itoa(id))
	u.RawQuery = q.Encode()
	return u.String()
}

func toRecord(id int, data *appDetailsData) release.DetailRecord {
	record := release.DetailRecord{
		Success:          true,
		ID:               id,
		Title:            data.Name,
		ReleaseDateText:  strings.TrimSpace(data.ReleaseDate.Date),
		ComingSoon:       data.ReleaseDate.ComingSoon,
		ShortDescription: data.ShortDescription,
		ImageURL:         data.HeaderImage,
		Platforms:        platformFlags(data.Platforms),
	}
	if data.Genres != nil {
		record.Genres = make([]string, 0, len(data.Genres))
		for _, g := range data.Genres {
			if d := strings.TrimSpace(g.Description); d != "" {
				record.Genres = append(record.Genres, d)
			}
		}
	}
	return record
}

// platformFlags maps the endpoint's lowercase platform keys onto the known
// platform set; unknown keys are dropped.
func platformFlags(raw map[string]bool) release.PlatformFlags {
	title := cases.Title(language.English)
	flags := make(release.PlatformFlags, len(release.Platforms))
	for _, p := range release.Platforms {
		flags[p] = false
	}
	for key, enabled := range raw {
		p := release.Platform(title.String(strings.ToLower(key)))
		if _, known := flags[p]; known {
			flags[p] = enabled
		}
	}
	return flags
}
