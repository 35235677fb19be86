package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-study-backend/internal/config"
	"github.com/tbourn/go-study-backend/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.InferenceConfig{BaseURL: srv.URL, Timeout: timeout, APIKey: "k"})
}

func sampleRequest() Request {
	return Request{Query: "What is photosynthesis?", Grade: 8, Subject: "science", Language: domain.LanguageEnglish, TopK: 5}
}

func TestGenerate_SendsWireRequestAndTransforms(t *testing.T) {
	var got wireRequest
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/query" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"answer": "  Plants make food.  ",
			"citations": [
				{"number": 7, "source": "NCERT", "chapter": "6", "page": 12, "excerpt": "x", "relevance": 0.876, "relevance_percent": 12, "chunk_id": "c1"},
				{"number": 3, "source": "NCERT", "relevance": 1.4, "chunk_id": "c2"}
			],
			"source_chunks": [{"chunk_id": "c1", "full_text": "full", "relevance": -0.2}],
			"model_id": "m1",
			"confidence": 0.9,
			"processing_time_ms": 12.6
		}`))
	}, time.Second)

	ans, err := c.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Question != "What is photosynthesis?" || got.Grade != 8 || got.Subject != "science" || got.Language != "english" || got.TopK != 5 {
		t.Fatalf("wire request = %+v", got)
	}
	if auth != "Bearer k" {
		t.Fatalf("authorization = %q", auth)
	}
	if ans.Text != "Plants make food." {
		t.Fatalf("text = %q", ans.Text)
	}
	if len(ans.Citations) != 2 || ans.Citations[0].Number != 1 || ans.Citations[1].Number != 2 {
		t.Fatalf("citations not renumbered: %+v", ans.Citations)
	}
	if ans.Citations[0].RelevancePercent != 88 {
		t.Fatalf("percent should derive from relevance, got %d", ans.Citations[0].RelevancePercent)
	}
	if ans.Citations[1].Relevance != 1 || ans.Citations[1].RelevancePercent != 100 {
		t.Fatalf("relevance not clamped: %+v", ans.Citations[1])
	}
	if ans.SourceChunks[0].Relevance != 0 || ans.SourceChunks[0].RelevancePercent != 0 {
		t.Fatalf("chunk relevance not clamped: %+v", ans.SourceChunks[0])
	}
	if !ans.InScope {
		t.Fatal("missing in_scope should default to true")
	}
	if ans.TokensUsed != 0 || ans.ChunksRetrieved != 0 || ans.ProcessingTimeMs != 13 {
		t.Fatalf("metadata defaults wrong: %+v", ans)
	}
}

func TestGenerate_EmptyListsNeverNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"Out of syllabus.","in_scope":false}`))
	}, time.Second)

	ans, err := c.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if ans.Citations == nil || ans.SourceChunks == nil {
		t.Fatal("lists should be empty, not nil")
	}
	if ans.InScope {
		t.Fatal("in_scope=false must be kept")
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    Kind
		status  int
		msg     string
	}{
		{
			name: "non-2xx with detail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"detail":"model not loaded"}`))
			},
			kind: KindUpstream, status: http.StatusBadGateway, msg: "model not loaded",
		},
		{
			name: "non-2xx plain text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			kind: KindUpstream, status: http.StatusInternalServerError, msg: "boom",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"answer":`))
			},
			kind: KindInvalidResponse,
		},
		{
			name: "missing answer",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"citations":[]}`))
			},
			kind: KindInvalidResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, time.Second)
			_, err := c.Generate(context.Background(), sampleRequest())
			var ie *Error
			if !errors.As(err, &ie) {
				t.Fatalf("want *Error, got %v", err)
			}
			if ie.Kind != tt.kind || ie.Status != tt.status {
				t.Fatalf("got kind=%s status=%d", ie.Kind, ie.Status)
			}
			if tt.msg != "" && !strings.Contains(ie.Message, tt.msg) {
				t.Fatalf("message = %q", ie.Message)
			}
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	_, err := c.Generate(context.Background(), sampleRequest())
	if KindOf(err) != KindTimeout {
		t.Fatalf("want timeout, got %v", err)
	}
}

func TestGenerate_Offline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(config.InferenceConfig{BaseURL: url, Timeout: time.Second})
	_, err := c.Generate(context.Background(), sampleRequest())
	if KindOf(err) != KindOffline {
		t.Fatalf("want offline, got %v", err)
	}
}

func TestGenerate_Canceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Generate(ctx, sampleRequest())
	if KindOf(err) != KindCanceled {
		t.Fatalf("want canceled, got %v", err)
	}
}

func TestNew_SelectsImplementation(t *testing.T) {
	g, err := New(config.InferenceConfig{Mock: true})
	if err != nil {
		t.Fatalf("New mock: %v", err)
	}
	if _, ok := g.(*Mock); !ok {
		t.Fatalf("want *Mock, got %T", g)
	}

	g, err = New(config.InferenceConfig{BaseURL: "http://rag:9000", Timeout: time.Minute})
	if err != nil {
		t.Fatalf("New client: %v", err)
	}
	if _, ok := g.(*Client); !ok {
		t.Fatalf("want *Client, got %T", g)
	}

	if _, err := New(config.InferenceConfig{}); err == nil {
		t.Fatal("empty base URL should fail")
	}
}

func TestPercent(t *testing.T) {
	cases := map[float64]int{0: 0, 0.004: 0, 0.005: 1, 0.5: 50, 0.999: 100, 1: 100, 2: 100, -1: 0}
	for in, want := range cases {
		if got := Percent(in); got != want {
			t.Errorf("Percent(%v) = %d, want %d", in, got, want)
		}
	}
}
