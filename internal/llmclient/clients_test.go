package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/config"
)

func geminiModelConfig(endpoint string) config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:   config.ProviderGemini,
		Model:      "gemini-test",
		APIKey:     "test-key",
		Endpoint:   endpoint,
		APITimeout: 5 * time.Second,
	}
}

func TestGeminiClient_RequiresAPIKey(t *testing.T) {
	cfg := geminiModelConfig("")
	cfg.APIKey = ""
	_, err := NewGeminiClient(cfg, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestGeminiClient_Generate(t *testing.T) {
	var gotPayload geminiRequestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		resp := geminiResponsePayload{}
		resp.Candidates = []struct {
			Content      geminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		}{
			{Content: geminiContent{Parts: []geminiPart{{Text: "generated plan"}}}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client, err := NewGeminiClient(geminiModelConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{
		SystemPrompt: "system framing",
		UserPrompt:   "plan the attack",
		Options:      schemas.GenerationOptions{Temperature: 0.2, ForceJSONFormat: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "generated plan", out)

	require.Len(t, gotPayload.Contents, 1)
	assert.Equal(t, "plan the attack", gotPayload.Contents[0].Parts[0].Text)
	assert.Equal(t, "system framing", gotPayload.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "application/json", gotPayload.GenerationConfig.ResponseMimeType)
}

func TestGeminiClient_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewGeminiClient(geminiModelConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a 400 must not be retried")
}

func azureModelConfig(endpoint string) config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:   config.ProviderAzureOpenAI,
		Model:      "gpt-4o",
		APIKey:     "azure-key",
		Endpoint:   endpoint,
		APITimeout: 5 * time.Second,
	}
}

func TestAzureOpenAIClient_RequiresKeyAndEndpoint(t *testing.T) {
	cfg := azureModelConfig("http://example.invalid")
	cfg.APIKey = ""
	_, err := NewAzureOpenAIClient(cfg, zaptest.NewLogger(t))
	require.Error(t, err)

	cfg = azureModelConfig("")
	_, err = NewAzureOpenAIClient(cfg, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestAzureOpenAIClient_Generate(t *testing.T) {
	var gotPayload chatRequestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		assert.Contains(t, r.URL.Path, "/openai/deployments/gpt-4o/chat/completions")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		resp := chatResponsePayload{}
		resp.Choices = []struct {
			Message      chatMessage `json:"message"`
			FinishReason string      `json:"finish_reason"`
		}{
			{Message: chatMessage{Role: "assistant", Content: "nmap -sV target"}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client, err := NewAzureOpenAIClient(azureModelConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{
		SystemPrompt: "you are an interpreter",
		UserPrompt:   "turn this step into a command",
	})
	require.NoError(t, err)
	assert.Equal(t, "nmap -sV target", out)

	require.Len(t, gotPayload.Messages, 2)
	assert.Equal(t, "system", gotPayload.Messages[0].Role)
	assert.Equal(t, "user", gotPayload.Messages[1].Role)
}

func TestNewClient_Factory(t *testing.T) {
	cfg := config.LLMConfig{
		Fast:              geminiModelConfig("http://example.invalid"),
		Powerful:          geminiModelConfig("http://example.invalid"),
		RequestsPerMinute: 30,
	}

	client, err := NewClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}

func TestNewClient_UnknownProvider(t *testing.T) {
	cfg := config.LLMConfig{
		Fast:              config.LLMModelConfig{Provider: "carrier-pigeon", Model: "x", APIKey: "k"},
		Powerful:          geminiModelConfig("http://example.invalid"),
		RequestsPerMinute: 30,
	}

	_, err := NewClient(cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown or unsupported LLM provider")
}
