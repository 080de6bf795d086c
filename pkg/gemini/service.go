package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"finsight-backend/pkg/ai"
)

const defaultRetryAfter = 60 * time.Second

// Captures the integer part of retry hints like "46s" or "2.5s".
var retrySeconds = regexp.MustCompile(`([0-9]+)`)

// GeminiService calls the Gemini generateContent endpoint and implements
// ai.Classifier. Rate-limit responses are reported as *ai.RateLimitError with
// the provider's retry hint attached.
type GeminiService struct {
	apiURL string
	apiKey string
	client *http.Client
}

func NewGeminiService(apiURL, apiKey string, timeout time.Duration) *GeminiService {
	return &GeminiService{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *GeminiService) Classify(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}

	body, _ := json.Marshal(payload)
	url := g.apiURL + "?key=" + g.apiKey
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &ai.RateLimitError{RetryAfter: retryHint(resp.Header, respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}

	// Response shape: { candidates: [ { content: { parts: [ { text } ] } } ] }
	if c, ok := result["candidates"].([]interface{}); ok && len(c) > 0 {
		if cand, ok := c[0].(map[string]interface{}); ok {
			if content, ok := cand["content"].(map[string]interface{}); ok {
				if parts, ok := content["parts"].([]interface{}); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]interface{}); ok {
						if text, ok := part["text"].(string); ok {
							return text, nil
						}
					}
				}
			}
		}
	}
	return "", fmt.Errorf("no candidates in gemini response")
}

// retryHint resolves the cooldown duration for a 429: the Retry-After header
// wins, then a RetryInfo retryDelay buried in the error details, then the
// 60-second default.
func retryHint(headers http.Header, body []byte) time.Duration {
	if ra := headers.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(ra)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	var root map[string]interface{}
	if err := json.Unmarshal(body, &root); err == nil {
		if errObj, ok := root["error"].(map[string]interface{}); ok {
			if details, ok := errObj["details"].([]interface{}); ok {
				for _, d := range details {
					detail, ok := d.(map[string]interface{})
					if !ok {
						continue
					}
					t, _ := detail["@type"].(string)
					if !strings.Contains(strings.ToLower(t), "retryinfo") {
						continue
					}
					if rd, ok := detail["retryDelay"].(string); ok {
						if m := retrySeconds.FindStringSubmatch(strings.TrimSpace(rd)); m != nil {
							if secs, err := strconv.Atoi(m[1]); err == nil && secs > 0 {
								return time.Duration(secs) * time.Second
							}
						}
					}
				}
			}
		}
	}

	return defaultRetryAfter
}
