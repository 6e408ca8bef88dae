package caption

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"slideflow/models"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGenerator(srv.URL, "test-model")
}

func TestGenerate_Success(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer cred-1" {
			t.Errorf("expected bearer credential, got %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("expected system+user messages, got %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "  A golden sunrise over the ridge.\n"}},
			},
		})
	})

	item := models.MediaItem{ID: "x", Title: "Sunrise", Channel: "earthporn", Kind: models.MediaKindImage}
	caption, err := g.Generate(context.Background(), "describe", item, "cred-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if caption != "A golden sunrise over the ridge." {
		t.Errorf("caption = %q", caption)
	}
}

func TestGenerate_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	})

	caption, err := g.Generate(context.Background(), "i", models.MediaItem{ID: "x"}, "c")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if caption != "ok" || calls.Load() != 2 {
		t.Errorf("caption=%q calls=%d", caption, calls.Load())
	}
}

func TestGenerate_ClientErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "bad model"}}`))
	})

	if _, err := g.Generate(context.Background(), "i", models.MediaItem{ID: "x"}, "c"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried, calls=%d", calls.Load())
	}
}

func TestGenerate_MalformedResponse(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	})
	if _, err := g.Generate(context.Background(), "i", models.MediaItem{ID: "x"}, "c"); err == nil {
		t.Fatal("malformed body must surface an error")
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})
	if _, err := g.Generate(context.Background(), "i", models.MediaItem{ID: "x"}, "c"); err == nil {
		t.Fatal("empty choices must surface an error")
	}
}
