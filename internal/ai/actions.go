// Package ai talks to an OpenAI-compatible completion endpoint and turns its
// replies into typed board actions.
package ai

import (
	"encoding/json"
	"fmt"
)

const (
	TypeCreateCard = "create_card"
	TypeUpdateCard = "update_card"
	TypeMoveCard   = "move_card"
	TypeDeleteCard = "delete_card"
)

// Action is the discriminated instruction a completion may carry. The
// concrete types below are the only implementations; decodeAction rejects
// anything else.
type Action interface {
	isAction()
}

type CreateCardAction struct {
	Type     string `json:"type"`
	ColumnID string `json:"columnId"`
	Title    string `json:"title"`
	Details  string `json:"details"`
	Position *int   `json:"position,omitempty"`
}

type UpdateCardAction struct {
	Type    string  `json:"type"`
	CardID  string  `json:"cardId"`
	Title   *string `json:"title,omitempty"`
	Details *string `json:"details,omitempty"`
}

type MoveCardAction struct {
	Type     string `json:"type"`
	CardID   string `json:"cardId"`
	ColumnID string `json:"columnId"`
	Position *int   `json:"position,omitempty"`
}

type DeleteCardAction struct {
	Type   string `json:"type"`
	CardID string `json:"cardId"`
}

func (CreateCardAction) isAction() {}
func (UpdateCardAction) isAction() {}
func (MoveCardAction) isAction()   {}
func (DeleteCardAction) isAction() {}

func decodeAction(raw json.RawMessage) (Action, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("action is not an object: %w", err)
	}

	switch head.Type {
	case TypeCreateCard:
		var fields struct {
			ColumnID *string `json:"columnId"`
			Title    *string `json:"title"`
			Details  string  `json:"details"`
			Position *int    `json:"position"`
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%s: %w", head.Type, err)
		}
		if fields.ColumnID == nil || fields.Title == nil {
			return nil, fmt.Errorf("%s: columnId and title are required", head.Type)
		}
		return CreateCardAction{
			Type:     head.Type,
			ColumnID: *fields.ColumnID,
			Title:    *fields.Title,
			Details:  fields.Details,
			Position: fields.Position,
		}, nil

	case TypeUpdateCard:
		var fields struct {
			CardID  *string `json:"cardId"`
			Title   *string `json:"title"`
			Details *string `json:"details"`
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%s: %w", head.Type, err)
		}
		if fields.CardID == nil {
			return nil, fmt.Errorf("%s: cardId is required", head.Type)
		}
		return UpdateCardAction{
			Type:    head.Type,
			CardID:  *fields.CardID,
			Title:   fields.Title,
			Details: fields.Details,
		}, nil

	case TypeMoveCard:
		var fields struct {
			CardID   *string `json:"cardId"`
			ColumnID *string `json:"columnId"`
			Position *int    `json:"position"`
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%s: %w", head.Type, err)
		}
		if fields.CardID == nil || fields.ColumnID == nil {
			return nil, fmt.Errorf("%s: cardId and columnId are required", head.Type)
		}
		return MoveCardAction{
			Type:     head.Type,
			CardID:   *fields.CardID,
			ColumnID: *fields.ColumnID,
			Position: fields.Position,
		}, nil

	case TypeDeleteCard:
		var fields struct {
			CardID *string `json:"cardId"`
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%s: %w", head.Type, err)
		}
		if fields.CardID == nil {
			return nil, fmt.Errorf("%s: cardId is required", head.Type)
		}
		return DeleteCardAction{Type: head.Type, CardID: *fields.CardID}, nil
	}

	return nil, fmt.Errorf("unknown action type %q", head.Type)
}
