package adjust

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
)

// The placeholder vocabulary is not part of the dashboard API; Adjust
// publishes it on a help page whose Next.js payload carries the full list
// as JSON.
const placeholdersPageURL = "https://help.adjust.com/en/partner/placeholders"

var nextDataMatcher = regexp.MustCompile(`(?s)<script id="__NEXT_DATA__"[^>]*>(.*?)</script>`)

type placeholdersPage struct {
	Props struct {
		PageProps struct {
			PlaceholdersData []struct {
				Category    string `json:"category"`
				Placeholder string `json:"placeholder"`
			} `json:"placeholdersData"`
		} `json:"pageProps"`
	} `json:"props"`
}

// Placeholders fetches the live placeholder vocabulary, deduplicated and
// sorted. No session needed; the page is public.
func (c *Client) Placeholders(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.placeholdersURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building placeholders request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching placeholders page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Path: c.placeholdersURL}
	}

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading placeholders page: %w", err)
	}
	match := nextDataMatcher.FindSubmatch(html)
	if match == nil {
		return nil, fmt.Errorf("placeholders page carries no __NEXT_DATA__ payload")
	}

	var page placeholdersPage
	if err = json.Unmarshal(match[1], &page); err != nil {
		return nil, fmt.Errorf("decoding placeholders payload: %w", err)
	}

	seen := map[string]struct{}{}
	var names []string
	for _, p := range page.Props.PageProps.PlaceholdersData {
		if p.Placeholder == "" {
			continue
		}
		if _, ok := seen[p.Placeholder]; ok {
			continue
		}
		seen[p.Placeholder] = struct{}{}
		names = append(names, p.Placeholder)
	}
	sort.Strings(names)
	return names, nil
}
