// Package aiworker is the AI extraction proxy: a single-route HTTP server
// that forwards free-form order text to an OpenAI-compatible completion
// endpoint through an egress proxy, rotating a fixed pool of API keys on
// rate limits and patching the model's answer before returning it.
package aiworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Keys        []string
	KeyPrefix   string
	ProxyURL    string
	UpstreamURL string
	Model       string
	TargetYear  int
}

type Server struct {
	cfg    Config
	keys   *keyPool
	client *http.Client
	sleep  func(time.Duration)
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = "https://api.groq.com/openai/v1/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	if cfg.TargetYear == 0 {
		cfg.TargetYear = time.Now().Year()
	}

	pool := newKeyPool(cfg.Keys, cfg.KeyPrefix)
	if pool.Len() == 0 {
		log.Error().Msg("aiworker: no API keys found, requests will fail")
	}

	transport := &http.Transport{}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("aiworker: invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Server{
		cfg:    cfg,
		keys:   pool,
		client: &http.Client{Transport: transport, Timeout: 120 * time.Second},
		sleep:  time.Sleep,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Post("/", s.handleExtract)
	return r
}

// corsMiddleware leaves the endpoint wide open; the worker is assumed to
// run behind a private network boundary.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, apikey, x-client-info")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type extractRequest struct {
	Text string `json:"text"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage map[string]any `json:"usage,omitempty"`
	Error *apiError      `json:"error,omitempty"`
}

type orderInfo struct {
	Deadline    string `json:"deadline"`
	FullAddress string `json:"full_address"`
	Email       string `json:"email"`
	ClientName  string `json:"client_name"`
}

type extraction struct {
	OrderInfo orderInfo       `json:"order_info"`
	Parts     json.RawMessage `json:"parts"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	var req extractRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Empty text"})
		return
	}

	log.Info().Int("size", len(body)).Msg("aiworker: extraction request")

	if s.keys.Len() == 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server Configuration Error: No API Keys"})
		return
	}

	payload := s.buildPayload(req.Text)

	maxRetries := s.keys.Len() + 1
	var lastErr *apiError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		key, err := s.keys.Current()
		if err != nil {
			break
		}

		log.Info().Str("key", s.keys.Masked()).Int("attempt", attempt+1).Int("max", maxRetries).Msg("aiworker: calling upstream")

		resp, err := s.callUpstream(r.Context(), key, payload)
		if err != nil {
			log.Warn().Err(err).Msg("aiworker: upstream network error")
			if attempt < maxRetries {
				s.sleep(time.Second)
				continue
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Network Error", "details": err.Error()})
			return
		}

		if resp.Error != nil {
			lastErr = resp.Error
			log.Warn().Str("key", s.keys.Masked()).Str("message", resp.Error.Message).Msg("aiworker: upstream API error")
			if attempt < maxRetries {
				wait := parseRetryAfter(resp.Error.Message)
				s.keys.Advance()
				log.Info().Dur("wait", wait).Str("next_key", s.keys.Masked()).Msg("aiworker: switching key")
				s.sleep(wait)
				continue
			}
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "Rate Limit Exceeded", "last_error": lastErr})
			return
		}

		if len(resp.Choices) == 0 {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Invalid AI Response"})
			return
		}

		content := resp.Choices[0].Message.Content
		var result extraction
		if err := json.Unmarshal([]byte(content), &result); err != nil {
			log.Error().Err(err).Str("raw", truncate(content, 100)).Msg("aiworker: unparseable model content")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Invalid AI Response", "raw": content})
			return
		}

		s.postprocess(&result, req.Text)

		patched, err := json.Marshal(result)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Processing Error", "details": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": string(patched)}},
			},
		})
		log.Info().Dur("elapsed", time.Since(started)).Interface("usage", resp.Usage).Msg("aiworker: done")
		return
	}

	writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "Rate Limit Exceeded", "last_error": lastErr})
}

func (s *Server) buildPayload(text string) []byte {
	req := chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: fmt.Sprintf("You are a parts assistant. Year is %d. Rules: 1. Deadline: use %d. 2. Address: Extract full line. 3. Brand: Propagation. JSON only.",
					s.cfg.TargetYear, s.cfg.TargetYear),
			},
			{
				Role: "user",
				Content: fmt.Sprintf(`Extract data from: %q. Result format: { "order_info": { "deadline": "YYYY-MM-DD", "full_address": "", "email": "", "client_name": "" }, "parts": [] }`,
					text),
			},
		},
		Temperature: 0.1,
	}
	req.ResponseFormat.Type = "json_object"

	payload, _ := json.Marshal(req)
	return payload
}

func (s *Server) callUpstream(ctx context.Context, key string, payload []byte) (*chatResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.UpstreamURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode upstream response: %w", err)
	}

	return &parsed, nil
}

// postprocess applies the deterministic fixes the model cannot be trusted
// with: literal email match, best address line, deadline year.
func (s *Server) postprocess(result *extraction, text string) {
	if email := extractEmail(text); email != "" {
		result.OrderInfo.Email = email
	}
	if addr := pickAddress(text); addr != "" && len(addr) > len(result.OrderInfo.FullAddress) {
		result.OrderInfo.FullAddress = addr
	}
	if result.OrderInfo.Deadline != "" {
		result.OrderInfo.Deadline = patchDeadlineYear(result.OrderInfo.Deadline, s.cfg.TargetYear)
	}
	if len(result.Parts) == 0 {
		result.Parts = json.RawMessage("[]")
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("aiworker: failed to write response")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
