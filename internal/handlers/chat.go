package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/websocket/v2"

	"github.com/escribajus/hearing-transcription/internal/export"
	"github.com/escribajus/hearing-transcription/internal/llm"
	"github.com/escribajus/hearing-transcription/internal/storage"
	"github.com/escribajus/hearing-transcription/internal/types"
)

const chatSystemPrompt = `Você é um assistente jurídico que responde perguntas sobre a transcrição de uma
audiência judicial. Responda com base apenas no conteúdo da transcrição abaixo.
Quando a resposta não estiver na transcrição, diga isso explicitamente.

TRANSCRIÇÃO:
`

const maxChatContext = 48000

// chatFrame is one websocket message exchanged with the client
type chatFrame struct {
	Type    string `json:"type"` // "token", "done" or "error"
	Content string `json:"content,omitempty"`
}

// ChatHandler answers questions about a transcript over a websocket,
// forwarding the model's streamed tokens as they arrive
type ChatHandler struct {
	db  *storage.DB
	llm *llm.Client
}

// NewChatHandler creates a new chat handler
func NewChatHandler(db *storage.DB, client *llm.Client) *ChatHandler {
	return &ChatHandler{db: db, llm: client}
}

// Handle processes one websocket chat session
func (h *ChatHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	jobID := c.Params("id")
	job, err := h.db.GetJob(jobID)
	if err != nil || job.Status != types.StatusCompleted {
		h.send(c, chatFrame{Type: "error", Content: "transcript not available"})
		return
	}

	utterances, err := h.db.ListUtterances(jobID)
	if err != nil {
		h.send(c, chatFrame{Type: "error", Content: "failed to load transcript"})
		return
	}

	transcript := export.Render(job, utterances, export.FormatText)
	if len(transcript) > maxChatContext {
		transcript = transcript[:maxChatContext]
	}
	system := chatSystemPrompt + transcript

	// One question per message; history stays within the connection.
	history := []llm.Message{{Role: "system", Content: system}}
	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage || len(message) == 0 {
			continue
		}

		history = append(history, llm.Message{Role: "user", Content: string(message)})

		var answer []byte
		err = h.llm.Stream(context.Background(), history, 0.3, func(token string) error {
			answer = append(answer, token...)
			return h.send(c, chatFrame{Type: "token", Content: token})
		})
		if err != nil {
			log.Printf("Chat stream for job %s failed: %v", jobID, err)
			h.send(c, chatFrame{Type: "error", Content: "chat request failed"})
			// Drop the failed turn so the history stays consistent.
			history = history[:len(history)-1]
			continue
		}

		history = append(history, llm.Message{Role: "assistant", Content: string(answer)})
		h.send(c, chatFrame{Type: "done"})
	}
}

func (h *ChatHandler) send(c *websocket.Conn, frame chatFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}
