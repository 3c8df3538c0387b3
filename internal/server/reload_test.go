package server

import (
	"strings"
	"testing"

	"github.com/peerreview/peerreview/internal/config"
	"github.com/peerreview/peerreview/internal/review"
)

func TestApplyReload_SwapsReviewClient(t *testing.T) {
	cfg := &config.Config{
		Gemini: config.GeminiConfig{APIKey: "old-key", Model: "gemini-2.0-flash", BaseURL: "https://example.test"},
	}

	srv, err := New(Options{
		Config: cfg,
		Stdin:  strings.NewReader(""),
		Stdout: &strings.Builder{},
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	before, ok := srv.reviewer().(*review.Client)
	if !ok {
		t.Fatal("expected a review.Client built from config")
	}
	if before.APIKey != "old-key" {
		t.Fatalf("APIKey = %q, want old-key", before.APIKey)
	}

	srv.applyReload(&config.Config{
		Gemini: config.GeminiConfig{APIKey: "new-key", Model: "gemini-2.0-pro", BaseURL: "https://example.test"},
	})

	after, ok := srv.reviewer().(*review.Client)
	if !ok {
		t.Fatal("expected a review.Client after reload")
	}
	if after.APIKey != "new-key" {
		t.Errorf("APIKey = %q, want new-key after reload", after.APIKey)
	}
	if after.Model != "gemini-2.0-pro" {
		t.Errorf("Model = %q, want gemini-2.0-pro after reload", after.Model)
	}
}

func TestApplyReload_DoesNotResetProtocolState(t *testing.T) {
	cfg := &config.Config{Gemini: config.GeminiConfig{APIKey: "k"}}

	srv, err := New(Options{
		Config: cfg,
		Stdin:  strings.NewReader(""),
		Stdout: &strings.Builder{},
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	srv.mu.Lock()
	srv.initialized = true
	srv.mu.Unlock()

	srv.applyReload(&config.Config{Gemini: config.GeminiConfig{APIKey: "k2"}})

	srv.mu.RLock()
	defer srv.mu.RUnlock()
	if !srv.initialized {
		t.Error("reload must not drop the initialized handshake state")
	}
}
