package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// FetchJackpotIDs busca os jackpots cadastrados no jackpot-service
func FetchJackpotIDs(ctx context.Context, client *http.Client, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/jackpots", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list jackpots: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list jackpots: http %s", resp.Status)
	}

	var list []struct {
		JackpotID string `json:"jackpotId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode jackpots: %w", err)
	}
	ids := make([]string, 0, len(list))
	for _, j := range list {
		if j.JackpotID != "" {
			ids = append(ids, j.JackpotID)
		}
	}
	return ids, nil
}
