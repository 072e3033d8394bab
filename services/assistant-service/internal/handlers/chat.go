package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/klinikflow/klinikflow/services/assistant-service/internal/agent"
	"github.com/klinikflow/klinikflow/services/assistant-service/internal/openai"
	"github.com/klinikflow/klinikflow/services/assistant-service/internal/storage"
)

type chatRequest struct {
	AgentID   string `json:"agentId"`
	ClientID  string `json:"clientId"`
	Message   string `json:"message"`
	ActionID  string `json:"actionId"`
	DraftText string `json:"draftText"`
}

type actionModelAnswer struct {
	Text   string `json:"text"`
	Blocks []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Text        string `json:"text"`
		DefaultMode string `json:"defaultMode"`
	} `json:"blocks"`
}

// Chat runs the shared multi-agent thread for one client. With an actionId it
// runs in action mode and returns journal blocks; otherwise it is plain chat.
// Either way the exchange is appended to the shared thread so every agent
// sees it.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	uid, done := h.preflight(w, r)
	if done {
		return
	}
	if !h.requireAI(w) {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Request body must be valid JSON.")
		return
	}
	req.AgentID = strings.TrimSpace(req.AgentID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.Message = strings.TrimSpace(req.Message)
	req.ActionID = strings.TrimSpace(req.ActionID)
	req.DraftText = strings.TrimSpace(req.DraftText)

	instructions, known := agent.Instructions(req.AgentID)
	if !known {
		h.writeError(w, http.StatusBadRequest, "Unknown agentId.")
		return
	}
	if req.ClientID == "" {
		h.writeError(w, http.StatusBadRequest, "Missing clientId.")
		return
	}
	if req.ActionID == "" && req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "Missing message.")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	if req.Message != "" {
		if err := h.chats.Append(ctx, storage.ChatMessage{
			OwnerUID:     uid,
			ClientID:     req.ClientID,
			Role:         "user",
			AgentID:      req.AgentID,
			Text:         req.Message,
			CreatedAtMs:  now.UnixMilli(),
			CreatedAtISO: now.Format("2006-01-02T15:04:05Z"),
		}); err != nil {
			h.logger.Error("chat message write failed", "err", err)
			h.writeError(w, http.StatusInternalServerError, "Chat write failed.")
			return
		}
	}

	history, err := h.chats.Recent(ctx, uid, req.ClientID, chatHistoryLimit)
	if err != nil {
		h.logger.Error("chat history lookup failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Chat lookup failed.")
		return
	}

	snapshot, _, err := h.clients.Snapshot(ctx, uid, req.ClientID)
	if err != nil {
		h.logger.Error("client lookup failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Client lookup failed.")
		return
	}

	notes, err := h.journals.Recent(ctx, uid, req.ClientID, chatJournalLimit)
	if err != nil {
		h.logger.Error("journal lookup failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Journal lookup failed.")
		return
	}

	clientContext := agent.ChatContext(snapshot, notes, agent.FormatHistory(history), now)

	if req.ActionID != "" {
		h.chatAction(w, r, uid, req, instructions, clientContext)
		return
	}

	temp := 0.3
	resp, err := h.ai.ChatCompletion(ctx, openai.ChatRequest{
		Messages: []openai.Message{
			{Role: "system", Content: instructions},
			{Role: "user", Content: clientContext},
		},
		Temperature: &temp,
	})
	if err != nil {
		h.logger.Error("chat completion failed", "err", err)
		h.writeError(w, http.StatusBadGateway, "OpenAI request failed.")
		return
	}

	if err := h.saveAssistant(ctx, uid, req, resp.Content, nil); err != nil {
		h.logger.Error("assistant message write failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Chat write failed.")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"output_text": resp.Content})
}

// chatAction asks the model for journal blocks matching the action id and
// validates them before returning.
func (h *AssistantHandler) chatAction(w http.ResponseWriter, r *http.Request, uid string, req chatRequest, instructions, clientContext string) {
	userPayload, err := json.Marshal(map[string]string{
		"actionId":      req.ActionID,
		"draftText":     req.DraftText,
		"clientContext": clientContext,
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Internal error.")
		return
	}

	temp := 0.2
	resp, err := h.ai.ChatCompletion(r.Context(), openai.ChatRequest{
		Messages: []openai.Message{
			{Role: "system", Content: instructions + "\n\n" + agent.ActionPrompt},
			{Role: "user", Content: string(userPayload)},
		},
		Temperature: &temp,
		JSONObject:  true,
	})
	if err != nil {
		h.logger.Error("action completion failed", "err", err)
		h.writeError(w, http.StatusBadGateway, "OpenAI request failed.")
		return
	}

	var answer actionModelAnswer
	_ = json.Unmarshal([]byte(resp.Content), &answer)

	blocks := validateBlocks(answer)
	text := strings.TrimSpace(answer.Text)

	if err := h.saveAssistant(r.Context(), uid, req, text, blocks); err != nil {
		h.logger.Error("assistant message write failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Chat write failed.")
		return
	}

	body := map[string]any{"output_text": text}
	if len(blocks) > 0 {
		body["blocks"] = blocks
	} else {
		body["blocks"] = nil
	}
	h.writeJSON(w, http.StatusOK, body)
}

func validateBlocks(answer actionModelAnswer) []storage.ActionBlock {
	var blocks []storage.ActionBlock
	for i, raw := range answer.Blocks {
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			continue
		}
		title := strings.TrimSpace(raw.Title)
		if title == "" {
			title = fmt.Sprintf("Block %d", i+1)
		}
		mode := raw.DefaultMode
		if mode != "append" && mode != "replace" {
			mode = "append"
		}
		id := raw.ID
		if id == "" {
			id = fmt.Sprintf("block%d", i+1)
		}
		blocks = append(blocks, storage.ActionBlock{
			ID:          id,
			Title:       title,
			Text:        text,
			DefaultMode: mode,
		})
	}
	return blocks
}

func (h *AssistantHandler) saveAssistant(ctx context.Context, uid string, req chatRequest, text string, blocks []storage.ActionBlock) error {
	now := time.Now().UTC()
	return h.chats.Append(ctx, storage.ChatMessage{
		OwnerUID:     uid,
		ClientID:     req.ClientID,
		Role:         "assistant",
		AgentID:      req.AgentID,
		Text:         text,
		Blocks:       blocks,
		CreatedAtMs:  now.UnixMilli(),
		CreatedAtISO: now.Format("2006-01-02T15:04:05Z"),
	})
}
