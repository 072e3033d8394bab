package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

const (
	DefaultBaseURL         = "https://api.openai.com/v1"
	DefaultChatModel       = "gpt-4o-mini"
	DefaultTranscribeModel = "gpt-4o-mini-transcribe"
)

// StatusError carries a non-2xx provider response so handlers can pass the
// provider's status and body through to the caller.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai: status %d", e.StatusCode)
}

// Client is a thin chat-completions and transcription client. Only the
// surface this system uses is implemented.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool { return c.apiKey != "" }

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	// JSONObject asks the provider for a json_object response format.
	JSONObject bool
}

type ChatResponse struct {
	Content string
	Message Message
}

type chatCompletionPayload struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResult struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = DefaultChatModel
	}
	payload := chatCompletionPayload{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	if req.JSONObject {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ChatResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return ChatResponse{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ChatResponse{}, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}

	var result chatCompletionResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return ChatResponse{}, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return ChatResponse{}, nil
	}
	msg := result.Choices[0].Message
	return ChatResponse{Content: msg.Content, Message: msg}, nil
}

// TranscribeRequest re-streams an uploaded audio file to the transcription
// endpoint. Fields mirror what the dictation UI sends.
type TranscribeRequest struct {
	FileName    string
	ContentType string
	File        io.Reader
	Model       string
	Language    string
	Prompt      string
	// ResponseFormat is the provider-side format ("json", "text", ...).
	ResponseFormat string
	Temperature    *float64
}

// TranscribeResult is the raw provider response; the handler passes status
// and body through unchanged.
type TranscribeResult struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (TranscribeResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileName := req.FileName
	if fileName == "" {
		fileName = "audio"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return TranscribeResult{}, err
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return TranscribeResult{}, err
	}

	model := req.Model
	if model == "" {
		model = DefaultTranscribeModel
	}
	fields := map[string]string{
		"model":           model,
		"language":        req.Language,
		"prompt":          req.Prompt,
		"response_format": req.ResponseFormat,
	}
	for key, value := range fields {
		if value == "" && key != "model" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return TranscribeResult{}, err
		}
	}
	if req.Temperature != nil {
		if err := writer.WriteField("temperature", fmt.Sprintf("%g", *req.Temperature)); err != nil {
			return TranscribeResult{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return TranscribeResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return TranscribeResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return TranscribeResult{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return TranscribeResult{}, err
	}
	return TranscribeResult{
		StatusCode:  resp.StatusCode,
		Body:        respBody,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
