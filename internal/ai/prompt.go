package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"kanban/api/internal/store"
)

// Message is one turn of an OpenAI-style conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const schemaHint = `You are a Kanban assistant. Reply only as JSON with this shape:
{"reply": string, "actions": [action, ...]}
Keep replies concise (1-2 sentences) unless the user requests detail.
Board data is ALWAYS provided below. Never claim you lack board data.
If asked to summarize the project or board, use ONLY the provided board data.
List the columns exactly as provided and mention a few key cards. Do not invent columns or cards.
Action types:
- create_card: {"type": "create_card", "columnId": string, "title": string, "details": string, "position": number|null}
- update_card: {"type": "update_card", "cardId": string, "title": string|null, "details": string|null}
- move_card: {"type": "move_card", "cardId": string, "columnId": string, "position": number|null}
- delete_card: {"type": "delete_card", "cardId": string}
Do not include any extra keys or text.`

// BuildMessages assembles the outbound conversation: a system message
// carrying the action schema and an authoritative board summary, the prior
// turns, then the new user message. Every column title appears in the
// summary with its card titles comma-joined, or "No cards" when empty.
func BuildMessages(board store.BoardView, history []Message, userMessage string) ([]Message, error) {
	summaryParts := make([]string, 0, len(board.Columns))
	columnTitles := make([]string, 0, len(board.Columns))
	for _, column := range board.Columns {
		columnTitles = append(columnTitles, column.Title)
		cardTitles := make([]string, 0, len(column.CardIDs))
		for _, cardID := range column.CardIDs {
			if card, ok := board.Cards[cardID]; ok {
				cardTitles = append(cardTitles, card.Title)
			}
		}
		cardSummary := "No cards"
		if len(cardTitles) > 0 {
			cardSummary = strings.Join(cardTitles, ", ")
		}
		summaryParts = append(summaryParts, fmt.Sprintf("%s: %s", column.Title, cardSummary))
	}

	boardJSON, err := json.MarshalIndent(board, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal board: %w", err)
	}

	system := fmt.Sprintf(
		"%s\n\nBoard columns (authoritative): %s\nBoard summary (authoritative): %s\nCurrent board data (JSON):\n%s",
		schemaHint,
		strings.Join(columnTitles, ", "),
		strings.Join(summaryParts, " | "),
		boardJSON,
	)

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: userMessage})
	return messages, nil
}
