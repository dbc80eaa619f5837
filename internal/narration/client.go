// Package narration reads product descriptions aloud through the Gemini
// text-to-speech API.
package narration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gulf-store/internal/cache"
	"gulf-store/internal/metrics"
)

const (
	defaultBaseURL  = "https://generativelanguage.googleapis.com"
	defaultModel    = "gemini-2.5-flash-preview-tts"
	defaultVoice    = "Fenrir"
	defaultTimeout  = 30 * time.Second
	defaultCacheTTL = 24 * time.Hour

	// SampleRate and Channels describe the PCM stream the API returns.
	SampleRate = 24000
	Channels   = 1
)

var (
	// ErrPermissionDenied means the API key lacks access to the speech model.
	ErrPermissionDenied = errors.New("narration: permission denied")
	// ErrNoText is returned for an empty description.
	ErrNoText = errors.New("narration: nothing to read")
	// ErrNoAudio means the API answered without audio data.
	ErrNoAudio = errors.New("narration: no audio data returned")
)

// Audio is raw 16-bit little-endian PCM.
type Audio struct {
	Data       []byte `json:"data"`
	MIMEType   string `json:"mimeType"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// Narrator turns text into speech.
type Narrator interface {
	Narrate(ctx context.Context, text string) (*Audio, error)
}

// Config holds Gemini client configuration.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Voice    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client calls the generateContent endpoint with an audio response modality.
type Client struct {
	logger   *slog.Logger
	baseURL  string
	apiKey   string
	model    string
	voice    string
	http     *http.Client
	metrics  *metrics.Metrics
	cache    *cache.Redis
	cacheTTL time.Duration
}

// New creates a Gemini narration client. metrics and redis may be nil.
func New(cfg Config, logger *slog.Logger, metrics *metrics.Metrics, redis *cache.Redis) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	voice := cfg.Voice
	if voice == "" {
		voice = defaultVoice
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		logger:   logger.With("component", "narration"),
		baseURL:  base,
		apiKey:   cfg.APIKey,
		model:    model,
		voice:    voice,
		http:     &http.Client{Timeout: timeout},
		metrics:  metrics,
		cache:    redis,
		cacheTTL: ttl,
	}
}

// Prompt wraps a product description in the store ambassador persona.
func Prompt(text string) string {
	return "أنت منصور، سفير المتجر. تحدث بصوت رجل هادئ ووقور وبلهجة خليجية بيضاء، " +
		"وقدّم هذا المنتج كنصيحة صادقة لمشترٍ يقدّر الجودة: \"" + text + "\". " +
		"واختم بتذكير العميل بأن منتجاتنا مشمولة بالضمان الذهبي وسياسة استرجاع ميسرة."
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Narrate returns speech for text, from the cache when available.
func (c *Client) Narrate(ctx context.Context, text string) (*Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoText
	}

	cacheKey := c.cacheKey(text)
	if c.cache != nil {
		var cached Audio
		ok, err := c.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			c.logger.Warn("read narration cache failed", "error", err)
		} else if ok {
			c.observe("cached", 0)
			return &cached, nil
		}
	}

	audio, err := c.generate(ctx, text)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, audio, c.cacheTTL); err != nil {
			c.logger.Warn("set narration cache failed", "error", err)
		}
	}
	return audio, nil
}

func (c *Client) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.model + "|" + c.voice + "|" + text))
	return "narration:" + hex.EncodeToString(sum[:])
}

func (c *Client) generate(ctx context.Context, text string) (*Audio, error) {
	body := generateRequest{
		Contents: []content{{Parts: []part{{Text: Prompt(text)}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	body.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = c.voice

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var res generateResponse
	if err := c.do(ctx, "/v1beta/models/"+c.model+":generateContent", payload, &res); err != nil {
		return nil, err
	}
	for _, cand := range res.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return &Audio{
					Data:       p.InlineData.Data,
					MIMEType:   p.InlineData.MIMEType,
					SampleRate: SampleRate,
					Channels:   Channels,
				}, nil
			}
		}
	}
	return nil, ErrNoAudio
}

func (c *Client) do(ctx context.Context, endpoint string, payload []byte, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "gulf-store/narration-client")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.observe("error", 0)
		return fmt.Errorf("gemini request: %w", err)
	}
	defer res.Body.Close()
	c.observe(fmt.Sprintf("%d", res.StatusCode), time.Since(start))

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 400 {
		return classifyHTTPError(res.StatusCode, string(bodyBytes))
	}
	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(status string, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.NarrationRequests.WithLabelValues(status).Inc()
	if d > 0 {
		c.metrics.NarrationLatency.WithLabelValues(status).Observe(d.Seconds())
	}
}

func classifyHTTPError(status int, body string) error {
	snippet := strings.TrimSpace(body)
	lower := strings.ToLower(snippet)
	if status == http.StatusForbidden ||
		strings.Contains(lower, "permission") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, snippet)
	}
	return fmt.Errorf("gemini error: status=%d body=%s", status, snippet)
}
