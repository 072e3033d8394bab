package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klinikflow/klinikflow/libs/auth"
	"github.com/klinikflow/klinikflow/services/assistant-service/internal/agent"
	"github.com/klinikflow/klinikflow/services/assistant-service/internal/openai"
	"github.com/klinikflow/klinikflow/services/assistant-service/internal/storage"
)

const (
	journalSummaryLimit = 10
	chatHistoryLimit    = 30
	chatJournalLimit    = 3
)

type JournalStore interface {
	Recent(ctx context.Context, ownerUID, clientID string, limit int) ([]storage.JournalEntry, error)
}

type ChatStore interface {
	Append(ctx context.Context, msg storage.ChatMessage) error
	Recent(ctx context.Context, ownerUID, clientID string, limit int) ([]storage.ChatMessage, error)
}

type ClientStore interface {
	Snapshot(ctx context.Context, ownerUID, clientID string) (storage.ClientSnapshot, bool, error)
}

// AssistantHandler exposes the clinician-facing AI endpoints. Every endpoint
// requires a bearer token; the subject claim is the owner uid scoping all
// reads and writes.
type AssistantHandler struct {
	ai        *openai.Client
	journals  JournalStore
	chats     ChatStore
	clients   ClientStore
	logger    *slog.Logger
	jwtSecret string
}

func NewAssistantHandler(ai *openai.Client, journals JournalStore, chats ChatStore, clients ClientStore, logger *slog.Logger, jwtSecret string) *AssistantHandler {
	return &AssistantHandler{
		ai:        ai,
		journals:  journals,
		chats:     chats,
		clients:   clients,
		logger:    logger,
		jwtSecret: jwtSecret,
	}
}

// preflight handles OPTIONS and enforces POST plus bearer auth. done is true
// when a response has been written.
func (h *AssistantHandler) preflight(w http.ResponseWriter, r *http.Request) (uid string, done bool) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return "", true
	}
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Only POST requests are supported.")
		return "", true
	}

	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		h.writeError(w, http.StatusUnauthorized, "Missing auth token.")
		return "", true
	}
	claims, err := auth.ParseAndVerifyHS256(token, h.jwtSecret)
	if err != nil || claims.Sub == "" {
		h.writeError(w, http.StatusUnauthorized, "Invalid auth token.")
		return "", true
	}
	return claims.Sub, false
}

func (h *AssistantHandler) requireAI(w http.ResponseWriter) bool {
	if h.ai.Configured() {
		return true
	}
	h.writeError(w, http.StatusInternalServerError, "OPENAI_API_KEY is not configured.")
	return false
}

func (h *AssistantHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if _, done := h.preflight(w, r); done {
		return
	}
	if !h.requireAI(w) {
		return
	}

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.writeError(w, http.StatusBadRequest, "Content-Type must be multipart/form-data.")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid multipart body.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Missing audio file in 'file' field.")
		return
	}
	defer file.Close()

	req := openai.TranscribeRequest{
		FileName:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		File:           file,
		Model:          r.FormValue("model"),
		Language:       r.FormValue("language"),
		Prompt:         r.FormValue("prompt"),
		ResponseFormat: r.FormValue("response_format"),
	}
	if raw := r.FormValue("temperature"); raw != "" {
		temp, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "temperature must be a number between 0 and 1.")
			return
		}
		req.Temperature = &temp
	}

	result, err := h.ai.Transcribe(r.Context(), req)
	if err != nil {
		h.logger.Error("transcription request failed", "err", err)
		h.writeError(w, http.StatusBadGateway, "Failed to reach OpenAI.")
		return
	}

	if result.StatusCode < 200 || result.StatusCode >= 300 {
		h.logger.Warn("transcription rejected upstream", "status", result.StatusCode)
		var details any
		if err := json.Unmarshal(result.Body, &details); err != nil {
			details = map[string]any{"message": string(result.Body)}
		}
		h.writeJSON(w, result.StatusCode, map[string]any{
			"error":   "OpenAI transcription failed.",
			"details": details,
		})
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(result.StatusCode)
	_, _ = w.Write(result.Body)
}

type completeRequest struct {
	UserPrompt string `json:"userprompt"`
}

func (h *AssistantHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if _, done := h.preflight(w, r); done {
		return
	}
	if !h.requireAI(w) {
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Request body must be valid JSON.")
		return
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		h.writeError(w, http.StatusBadRequest, "Missing 'userprompt' in request body.")
		return
	}

	resp, err := h.ai.ChatCompletion(r.Context(), openai.ChatRequest{
		Messages: []openai.Message{{Role: "user", Content: req.UserPrompt}},
	})
	if err != nil {
		h.logger.Error("completion failed", "err", err)
		h.writeError(w, http.StatusBadGateway, "OpenAI request failed.")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"output":  resp.Content,
		"message": resp.Message,
	})
}

type summarizeRequest struct {
	ClientID string `json:"clientId"`
}

func (h *AssistantHandler) SummarizeJournal(w http.ResponseWriter, r *http.Request) {
	uid, done := h.preflight(w, r)
	if done {
		return
	}
	if !h.requireAI(w) {
		return
	}

	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Request body must be valid JSON.")
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		h.writeError(w, http.StatusBadRequest, "Missing clientId.")
		return
	}

	entries, err := h.journals.Recent(r.Context(), uid, req.ClientID, journalSummaryLimit)
	if err != nil {
		h.logger.Error("journal lookup failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Journal lookup failed.")
		return
	}
	if len(entries) == 0 {
		h.writeJSON(w, http.StatusOK, map[string]any{"summary": agent.EmptyJournalSummary})
		return
	}

	notes := make([]string, 0, len(entries))
	for _, entry := range entries {
		notes = append(notes, agent.FormatJournalEntry(entry))
	}

	temp := 0.3
	resp, err := h.ai.ChatCompletion(r.Context(), openai.ChatRequest{
		Messages: []openai.Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: agent.SummarizePrompt(strings.Join(notes, "\n\n"))},
		},
		Temperature: &temp,
	})
	if err != nil {
		h.logger.Error("summarization failed", "err", err)
		h.writeError(w, http.StatusBadGateway, "OpenAI request failed.")
		return
	}

	summary := resp.Content
	if summary == "" {
		summary = agent.SummaryFallback
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

type suggestRequest struct {
	ClientID           string `json:"clientId"`
	LastAppointmentISO string `json:"lastAppointmentIso"`
	Diagnosis          string `json:"diagnosis"`
	SessionCount       any    `json:"sessionCount"`
	JournalSummary     string `json:"journalSummary"`
	DurationMinutes    any    `json:"durationMinutes"`
}

type suggestModelAnswer struct {
	RecommendedIntervalDays any    `json:"recommendedIntervalDays"`
	ClinicalRationale       string `json:"clinicalRationale"`
	SafetyNote              string `json:"safetyNote"`
}

func (h *AssistantHandler) SuggestAppointment(w http.ResponseWriter, r *http.Request) {
	_, done := h.preflight(w, r)
	if done {
		return
	}
	if !h.requireAI(w) {
		return
	}

	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Request body must be valid JSON.")
		return
	}
	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.LastAppointmentISO) == "" {
		h.writeError(w, http.StatusBadRequest, "Missing clientId or lastAppointmentIso.")
		return
	}

	last, err := time.Parse(time.RFC3339, strings.TrimSpace(req.LastAppointmentISO))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid lastAppointmentIso.")
		return
	}

	diagnosis := strings.TrimSpace(req.Diagnosis)
	if diagnosis == "" {
		diagnosis = "Ukendt diagnose"
	}
	durationMinutes := safeInt(req.DurationMinutes, 60)

	userContent, err := json.Marshal(map[string]any{
		"clientId":           req.ClientID,
		"diagnosis":          diagnosis,
		"lastAppointmentIso": req.LastAppointmentISO,
		"sessionCount":       req.SessionCount,
		"journalSummary":     req.JournalSummary,
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Internal error.")
		return
	}

	temp := 0.3
	resp, err := h.ai.ChatCompletion(r.Context(), openai.ChatRequest{
		Messages: []openai.Message{
			{Role: "system", Content: agent.SuggestPrompt},
			{Role: "user", Content: string(userContent)},
		},
		Temperature: &temp,
		JSONObject:  true,
	})
	if err != nil {
		h.logger.Error("suggestion failed", "err", err)
		h.writeError(w, http.StatusBadGateway, "OpenAI request failed.")
		return
	}

	var answer suggestModelAnswer
	_ = json.Unmarshal([]byte(resp.Content), &answer)

	intervalDays := safeInt(answer.RecommendedIntervalDays, 7)
	if intervalDays < 1 {
		intervalDays = 1
	}
	if intervalDays > 60 {
		intervalDays = 60
	}

	next := last.Add(time.Duration(intervalDays) * 24 * time.Hour)
	end := next.Add(time.Duration(durationMinutes) * time.Minute)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"suggested": map[string]string{
			"startDate": next.Format("02-01-2006"),
			"startTime": next.Format("15:04"),
			"endDate":   end.Format("02-01-2006"),
			"endTime":   end.Format("15:04"),
		},
		"rationale":    strings.TrimSpace(answer.ClinicalRationale),
		"safetyNote":   strings.TrimSpace(answer.SafetyNote),
		"intervalDays": intervalDays,
	})
}

func (h *AssistantHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": message})
}

func (h *AssistantHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "err", err)
	}
}

// safeInt coerces the loosely-typed numeric fields clients send (number or
// numeric string) with a fallback.
func safeInt(v any, fallback int) int {
	switch value := v.(type) {
	case nil:
		return fallback
	case float64:
		return int(value)
	case int:
		return value
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fallback
		}
		return n
	default:
		return fallback
	}
}
