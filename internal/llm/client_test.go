package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "resposta"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "")
	got, err := client.Complete(context.Background(), "sistema", "pergunta", 0.2, 1024)
	require.NoError(t, err)
	assert.Equal(t, "resposta", got)
}

func TestCompleteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "")
	_, err := client.Complete(context.Background(), "s", "u", 0.2, 128)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
}

func TestCompleteNotConfigured(t *testing.T) {
	client := NewClient("", "", "")
	_, err := client.Complete(context.Background(), "s", "u", 0.2, 128)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestStreamReassemblesTokensInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		tokens := []string{"O ", "réu ", "compareceu."}
		for _, token := range tokens {
			chunk := map[string]interface{}{
				"choices": []map[string]interface{}{
					{"delta": map[string]interface{}{"content": token}},
				},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		// Malformed chunk and keepalive noise must be skipped silently
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "")
	var got string
	err := client.Stream(context.Background(),
		[]Message{{Role: "user", Content: "o que houve?"}}, 0.3,
		func(token string) error {
			got += token
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "O réu compareceu.", got)
}

func TestStreamStopsWhenCallbackFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 10; i++ {
			chunk := map[string]interface{}{
				"choices": []map[string]interface{}{
					{"delta": map[string]interface{}{"content": "x"}},
				},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "")
	calls := 0
	err := client.Stream(context.Background(),
		[]Message{{Role: "user", Content: "q"}}, 0.3,
		func(token string) error {
			calls++
			if calls == 2 {
				return errors.New("client went away")
			}
			return nil
		})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
