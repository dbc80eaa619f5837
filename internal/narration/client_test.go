package narration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"gulf-store/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func audioResponse(pcm []byte) string {
	return `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;rate=24000","data":"` +
		base64.StdEncoding.EncodeToString(pcm) + `"}}]}}]}`
}

func TestNarrateSendsVoiceAndDecodesAudio(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash-preview-tts:generateContent", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"AUDIO"}, req.GenerationConfig.ResponseModalities)
		assert.Equal(t, "Fenrir", req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "ساعة ذكية")

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, audioResponse(pcm))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "key-123"}, discard(), nil, nil)
	audio, err := client.Narrate(context.Background(), "  ساعة ذكية  ")
	require.NoError(t, err)
	assert.Equal(t, pcm, audio.Data)
	assert.Equal(t, SampleRate, audio.SampleRate)
	assert.Equal(t, Channels, audio.Channels)
}

func TestNarratePermissionDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"status":"PERMISSION_DENIED"}}`)
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}, discard(), nil, nil).Narrate(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, PromptEnableAccess, PromptFor(err))
}

func TestNarratePermissionMessageOnOtherStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `caller does not have permission`)
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}, discard(), nil, nil).Narrate(context.Background(), "text")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestNarrateOtherFailuresRetryLater(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	client := New(Config{BaseURL: server.URL}, discard(), nil, nil)

	_, err := client.Narrate(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPermissionDenied))
	assert.Equal(t, PromptRetryLater, PromptFor(err))

	_, err = client.Narrate(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestNarrateWithoutAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"no audio"}]}}]}`)
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}, discard(), nil, nil).Narrate(context.Background(), "text")
	assert.ErrorIs(t, err, ErrNoAudio)
	assert.Equal(t, PromptRetryLater, PromptFor(err))
}

func TestNarrateSurvivesUnreachableCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, audioResponse([]byte{9, 9}))
	}))
	defer server.Close()

	redis := cache.New(cache.Config{Addr: "127.0.0.1:1"}, discard())
	defer redis.Close()
	client := New(Config{BaseURL: server.URL}, discard(), nil, redis)

	audio, err := client.Narrate(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, audio.Data)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPromptForNil(t *testing.T) {
	assert.Empty(t, PromptFor(nil))
}

func TestWAVHeader(t *testing.T) {
	a := &Audio{Data: []byte{1, 2, 3, 4}, SampleRate: SampleRate, Channels: Channels}
	wav := a.WAV()
	require.Len(t, wav, 48)
	assert.True(t, strings.HasPrefix(string(wav), "RIFF"))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, []byte{1, 2, 3, 4}, wav[44:])
}
