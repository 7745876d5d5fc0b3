package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"kanban/api/internal/ai"
	"kanban/api/internal/store"
)

// applyActions runs an action batch against the board as one unit of work.
// Actions execute strictly in order; any action naming a column or card that
// does not resolve under the board is skipped, since the model may repeat
// stale ids. A storage failure aborts and rolls back the whole batch.
func (s *Service) applyActions(ctx context.Context, boardID int64, actions []ai.Action) error {
	work, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}

	for _, action := range actions {
		if err := applyAction(ctx, work, boardID, action); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			_ = work.Rollback()
			return err
		}
	}

	return work.Commit()
}

func applyAction(ctx context.Context, work *store.Work, boardID int64, action ai.Action) error {
	switch a := action.(type) {
	case ai.CreateCardAction:
		columnID, err := actionEntityID(a.ColumnID)
		if err != nil {
			return err
		}
		_, err = work.CreateCard(ctx, boardID, columnID, a.Title, a.Details, a.Position)
		return err

	case ai.UpdateCardAction:
		cardID, err := actionEntityID(a.CardID)
		if err != nil {
			return err
		}
		return work.UpdateCard(ctx, cardID, boardID, a.Title, a.Details, nil, nil)

	case ai.MoveCardAction:
		cardID, err := actionEntityID(a.CardID)
		if err != nil {
			return err
		}
		columnID, err := actionEntityID(a.ColumnID)
		if err != nil {
			return err
		}
		// Same move path as a direct card update: remove from the source
		// ordering, insert at the resolved index, resequence both scopes.
		return work.UpdateCard(ctx, cardID, boardID, nil, nil, &columnID, a.Position)

	case ai.DeleteCardAction:
		cardID, err := actionEntityID(a.CardID)
		if err != nil {
			return err
		}
		return work.DeleteCard(ctx, cardID, boardID)
	}

	return fmt.Errorf("unhandled action %T", action)
}

// actionEntityID parses a model-supplied id. Non-numeric ids are treated the
// same as ids that don't resolve: the action is skipped.
func actionEntityID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id %q: %w", raw, store.ErrNotFound)
	}
	return id, nil
}
