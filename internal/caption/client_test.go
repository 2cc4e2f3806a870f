package caption

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080", "test-key", "test-model")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.BaseURL != "http://localhost:8080" {
		t.Errorf("NewClient() BaseURL = %v, want http://localhost:8080", client.BaseURL)
	}
	if client.Model != "test-model" {
		t.Errorf("NewClient() Model = %v, want test-model", client.Model)
	}
}

func TestClient_Generate(t *testing.T) {
	tests := []struct {
		name       string
		serverResp func(t *testing.T, w http.ResponseWriter, r *http.Request)
		wantText   string
		wantErr    bool
	}{
		{
			name: "successful generation",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
				}
				if !strings.Contains(r.Header.Get("Authorization"), "Bearer") {
					t.Error("missing Authorization header")
				}

				var req chatRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				if len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
					t.Errorf("expected one message with text + image parts, got %+v", req.Messages)
				} else {
					img := req.Messages[0].Content[1]
					if img.ImageURL == nil || !strings.HasPrefix(img.ImageURL.URL, "data:image/png;base64,") {
						t.Errorf("expected inline data URL image part, got %+v", img)
					}
				}

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{
					"id": "test-id",
					"object": "chat.completion",
					"choices": [{"index": 0, "message": {"role": "assistant", "content": "Golden hour at the platform."}, "finish_reason": "stop"}]
				}`))
			},
			wantText: "Golden hour at the platform.",
			wantErr:  false,
		},
		{
			name: "no choices returned",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id": "test-id", "object": "chat.completion", "choices": []}`))
			},
			wantErr: true,
		},
		{
			name: "invalid credentials",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error": "invalid api key"}`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.serverResp(t, w, r)
			}))
			defer server.Close()

			client := NewClient(server.URL, "test-key", "test-model")
			text, err := client.Generate(context.Background(), []byte("fake png"), "image/png", "Caption a photo taken at Redhill station.")

			if tt.wantErr {
				if err == nil {
					t.Errorf("Generate() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Generate() unexpected error: %v", err)
				return
			}

			if text != tt.wantText {
				t.Errorf("Generate() = %v, want %v", text, tt.wantText)
			}
		})
	}
}
