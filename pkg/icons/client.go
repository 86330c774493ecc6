package icons

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// The catalog backend serves two levels: a list of sets, and the icons of
// each set.  Payload shapes follow the service's JSON exactly so we can
// decode without an intermediate map.
type setPayload struct {
	Name string `json:"name"`
}

type iconPayload struct {
	Name   string     `json:"name"`
	Anchor [2]float64 `json:"anchor"`
	Size   [2]float64 `json:"size"`
	URL    string     `json:"url"`
}

type listPayload[T any] struct {
	Items []T `json:"items"`
}

// FetchCatalog downloads every icon set from the backend.  The result is
// read-only; concurrent imports share it without locks.  Any HTTP or decode
// failure aborts the whole fetch so the caller can decide between retrying
// and running without a catalog.
func FetchCatalog(ctx context.Context, baseURL string) (*Catalog, error) {
	client := &http.Client{Timeout: 20 * time.Second}
	base := strings.TrimRight(baseURL, "/")

	var setsList listPayload[setPayload]
	if err := getJSON(ctx, client, base+"/api/icons/sets", &setsList); err != nil {
		return nil, fmt.Errorf("fetch icon sets: %w", err)
	}

	sets := make([]Set, 0, len(setsList.Items))
	for _, sp := range setsList.Items {
		var iconsList listPayload[iconPayload]
		url := fmt.Sprintf("%s/api/icons/sets/%s/icons", base, sp.Name)
		if err := getJSON(ctx, client, url, &iconsList); err != nil {
			return nil, fmt.Errorf("fetch icons of set %q: %w", sp.Name, err)
		}
		set := Set{Name: sp.Name, Icons: make([]Icon, 0, len(iconsList.Items))}
		for _, ip := range iconsList.Items {
			set.Icons = append(set.Icons, Icon{
				Set:    sp.Name,
				Name:   ip.Name,
				URL:    ip.URL,
				Anchor: ip.Anchor,
				Size:   ip.Size,
			})
		}
		sets = append(sets, set)
	}
	return NewCatalog(sets), nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
