// Package ai calls the extraction worker: free-form client text in,
// structured order draft out. The worker's answer shape is an OpenAI-style
// chat envelope whose content is itself a JSON document; callers must
// tolerate missing or empty fields throughout.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type OrderInfo struct {
	Deadline    string `json:"deadline"`
	FullAddress string `json:"full_address"`
	Email       string `json:"email"`
	ClientName  string `json:"client_name"`
}

// Quantity tolerates the model returning a number, a numeric string, or
// nothing at all.
type Quantity int

func (q *Quantity) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` || s == "" {
		*q = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	// Keep the leading integer part of strings like "5 шт" or "2.0".
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		*q = 0
		return nil
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		*q = 0
		return nil
	}
	*q = Quantity(n)
	return nil
}

type Part struct {
	Name     string   `json:"name"`
	Brand    string   `json:"brand"`
	Article  string   `json:"article"`
	Quantity Quantity `json:"quantity"`
	UOM      string   `json:"uom"`
}

type Extraction struct {
	OrderInfo OrderInfo `json:"order_info"`
	Parts     []Part    `json:"parts"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 90 * time.Second},
	}
}

type envelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Extract sends the raw request text to the worker and decodes the
// structured result.
func (c *Client) Extract(ctx context.Context, text string) (*Extraction, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("ai: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: worker request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("ai: failed to decode worker response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := env.Error
		if env.Details != "" {
			msg = fmt.Sprintf("%s: %s", env.Error, env.Details)
		}
		return nil, fmt.Errorf("ai: worker returned %d: %s", resp.StatusCode, msg)
	}
	if len(env.Choices) == 0 {
		return nil, fmt.Errorf("ai: worker returned no choices")
	}

	var ex Extraction
	if err := json.Unmarshal([]byte(env.Choices[0].Message.Content), &ex); err != nil {
		log.Warn().Err(err).Msg("ai: unparseable extraction content")
		return nil, fmt.Errorf("ai: failed to parse extraction: %w", err)
	}
	if ex.Parts == nil {
		ex.Parts = make([]Part, 0)
	}

	return &ex, nil
}
