package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound marks a column or card id that does not resolve to a row owned
// by the given board. Mutations that return it have changed nothing.
var ErrNotFound = errors.New("not found")

const DefaultBoardTitle = "My Board"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is the board repository. Every mutation runs as one transaction
// that ends by resequencing the affected position scopes, so the dense
// zero-based ordering invariant holds at each commit point.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $N for the postgres driver. Queries are
// written once in ? form so both dialects share the same text.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) inTx(ctx context.Context, fn func(q dbtx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Work is a transaction-scoped view of the repository. The chat action
// applier uses it to run a whole action batch as one unit of work.
type Work struct {
	s  *SQLStore
	tx *sql.Tx
}

func (s *SQLStore) Begin(ctx context.Context) (*Work, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin work: %w", err)
	}
	return &Work{s: s, tx: tx}, nil
}

func (w *Work) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("commit work: %w", err)
	}
	return nil
}

func (w *Work) Rollback() error {
	return w.tx.Rollback()
}

func (w *Work) CreateColumn(ctx context.Context, boardID int64, title string, position *int) (int64, error) {
	return w.s.createColumn(ctx, w.tx, boardID, title, position)
}

func (w *Work) UpdateColumn(ctx context.Context, columnID, boardID int64, title *string, position *int) error {
	return w.s.updateColumn(ctx, w.tx, columnID, boardID, title, position)
}

func (w *Work) DeleteColumn(ctx context.Context, columnID, boardID int64) error {
	return w.s.deleteColumn(ctx, w.tx, columnID, boardID)
}

func (w *Work) CreateCard(ctx context.Context, boardID, columnID int64, title, details string, position *int) (int64, error) {
	return w.s.createCard(ctx, w.tx, boardID, columnID, title, details, position)
}

func (w *Work) UpdateCard(ctx context.Context, cardID, boardID int64, title, details *string, columnID *int64, position *int) error {
	return w.s.updateCard(ctx, w.tx, cardID, boardID, title, details, columnID, position)
}

func (w *Work) DeleteCard(ctx context.Context, cardID, boardID int64) error {
	return w.s.deleteCard(ctx, w.tx, cardID, boardID)
}

// GetOrCreateUser looks a user up by unique username, inserting on first
// sight. Runs select-else-insert in one transaction so concurrent first
// requests for the same name race on the unique index, not on reads.
func (s *SQLStore) GetOrCreateUser(ctx context.Context, username string) (User, error) {
	var user User
	err := s.inTx(ctx, func(q dbtx) error {
		var err error
		user, err = s.getOrCreateUser(ctx, q, username)
		return err
	})
	return user, err
}

func (s *SQLStore) getOrCreateUser(ctx context.Context, q dbtx, username string) (User, error) {
	var user User
	var passwordHash sql.NullString
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT id, username, password_hash FROM users WHERE username = ?`),
		username,
	).Scan(&user.ID, &user.Username, &passwordHash)
	if err == nil {
		user.PasswordHash = passwordHash.String
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO users (username) VALUES (?) RETURNING id`),
		username,
	).Scan(&user.ID); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	user.Username = username
	return user, nil
}

// SetUserPassword stores a password hash for a user.
func (s *SQLStore) SetUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
		passwordHash, userID,
	)
	if err != nil {
		return fmt.Errorf("set user password: %w", err)
	}
	return nil
}

// GetOrCreateBoard resolves the user's single board, creating it with the
// default title if absent. UNIQUE(user_id) backs the one-board-per-user
// invariant at the storage level.
func (s *SQLStore) GetOrCreateBoard(ctx context.Context, userID int64) (Board, error) {
	var board Board
	err := s.inTx(ctx, func(q dbtx) error {
		var err error
		board, err = s.getOrCreateBoard(ctx, q, userID)
		return err
	})
	return board, err
}

func (s *SQLStore) getOrCreateBoard(ctx context.Context, q dbtx, userID int64) (Board, error) {
	var board Board
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT id, user_id, title FROM boards WHERE user_id = ?`),
		userID,
	).Scan(&board.ID, &board.UserID, &board.Title)
	if err == nil {
		return board, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Board{}, fmt.Errorf("lookup board: %w", err)
	}

	if err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO boards (user_id, title) VALUES (?, ?) RETURNING id`),
		userID, DefaultBoardTitle,
	).Scan(&board.ID); err != nil {
		return Board{}, fmt.Errorf("insert board: %w", err)
	}
	board.UserID = userID
	board.Title = DefaultBoardTitle
	return board, nil
}

// FetchBoard returns the full board snapshot for a user, creating the board
// and seeding it with the default columns on first access. Cards are ordered
// by position within each column; archived cards are excluded.
func (s *SQLStore) FetchBoard(ctx context.Context, userID int64) (BoardView, error) {
	var view BoardView
	err := s.inTx(ctx, func(q dbtx) error {
		board, err := s.getOrCreateBoard(ctx, q, userID)
		if err != nil {
			return err
		}
		if err := s.ensureSeedData(ctx, q, board.ID); err != nil {
			return err
		}
		view, err = s.fetchBoard(ctx, q, board)
		return err
	})
	return view, err
}

func (s *SQLStore) fetchBoard(ctx context.Context, q dbtx, board Board) (BoardView, error) {
	view := BoardView{
		Board:   BoardInfo{ID: formatID(board.ID), Title: board.Title},
		Columns: make([]ColumnView, 0),
		Cards:   make(map[string]CardView),
	}

	columnRows, err := q.QueryContext(ctx,
		s.rebind(`SELECT id, title, position FROM columns WHERE board_id = ? ORDER BY position`),
		board.ID,
	)
	if err != nil {
		return BoardView{}, fmt.Errorf("list columns: %w", err)
	}
	defer columnRows.Close()

	columnIndex := make(map[int64]int)
	for columnRows.Next() {
		var column Column
		if err := columnRows.Scan(&column.ID, &column.Title, &column.Position); err != nil {
			return BoardView{}, fmt.Errorf("scan column: %w", err)
		}
		columnIndex[column.ID] = len(view.Columns)
		view.Columns = append(view.Columns, ColumnView{
			ID:       formatID(column.ID),
			Title:    column.Title,
			Position: column.Position,
			CardIDs:  make([]string, 0),
		})
	}
	if err := columnRows.Err(); err != nil {
		return BoardView{}, fmt.Errorf("iterate columns: %w", err)
	}

	cardRows, err := q.QueryContext(ctx, s.rebind(`
		SELECT id, column_id, title, details
		FROM cards
		WHERE archived = ? AND column_id IN (SELECT id FROM columns WHERE board_id = ?)
		ORDER BY column_id, position
	`), false, board.ID)
	if err != nil {
		return BoardView{}, fmt.Errorf("list cards: %w", err)
	}
	defer cardRows.Close()

	for cardRows.Next() {
		var card Card
		if err := cardRows.Scan(&card.ID, &card.ColumnID, &card.Title, &card.Details); err != nil {
			return BoardView{}, fmt.Errorf("scan card: %w", err)
		}
		id := formatID(card.ID)
		view.Cards[id] = CardView{ID: id, Title: card.Title, Details: card.Details}
		if index, ok := columnIndex[card.ColumnID]; ok {
			view.Columns[index].CardIDs = append(view.Columns[index].CardIDs, id)
		}
	}
	if err := cardRows.Err(); err != nil {
		return BoardView{}, fmt.Errorf("iterate cards: %w", err)
	}

	return view, nil
}

func (s *SQLStore) CreateColumn(ctx context.Context, boardID int64, title string, position *int) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(q dbtx) error {
		var err error
		id, err = s.createColumn(ctx, q, boardID, title, position)
		return err
	})
	return id, err
}

func (s *SQLStore) createColumn(ctx context.Context, q dbtx, boardID int64, title string, position *int) (int64, error) {
	ids, err := s.orderedColumnIDs(ctx, q, boardID)
	if err != nil {
		return 0, err
	}
	index := ResolveInsertIndex(position, len(ids))

	var columnID int64
	if err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO columns (board_id, title, position) VALUES (?, ?, ?) RETURNING id`),
		boardID, title, index,
	).Scan(&columnID); err != nil {
		return 0, fmt.Errorf("insert column: %w", err)
	}

	ids = insertID(ids, index, columnID)
	if err := resequence(ctx, q, s.rebind, "columns", ids, boardID); err != nil {
		return 0, err
	}
	return columnID, nil
}

func (s *SQLStore) UpdateColumn(ctx context.Context, columnID, boardID int64, title *string, position *int) error {
	return s.inTx(ctx, func(q dbtx) error {
		return s.updateColumn(ctx, q, columnID, boardID, title, position)
	})
}

func (s *SQLStore) updateColumn(ctx context.Context, q dbtx, columnID, boardID int64, title *string, position *int) error {
	if err := s.columnInBoard(ctx, q, columnID, boardID); err != nil {
		return err
	}

	if title != nil {
		if _, err := q.ExecContext(ctx,
			s.rebind(`UPDATE columns SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
			*title, columnID,
		); err != nil {
			return fmt.Errorf("update column title: %w", err)
		}
	}

	if position != nil {
		ids, err := s.orderedColumnIDs(ctx, q, boardID)
		if err != nil {
			return err
		}
		ids = removeID(ids, columnID)
		index := ResolveInsertIndex(position, len(ids))
		ids = insertID(ids, index, columnID)
		if err := resequence(ctx, q, s.rebind, "columns", ids, boardID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) DeleteColumn(ctx context.Context, columnID, boardID int64) error {
	return s.inTx(ctx, func(q dbtx) error {
		return s.deleteColumn(ctx, q, columnID, boardID)
	})
}

func (s *SQLStore) deleteColumn(ctx context.Context, q dbtx, columnID, boardID int64) error {
	if err := s.columnInBoard(ctx, q, columnID, boardID); err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, s.rebind(`DELETE FROM cards WHERE column_id = ?`), columnID); err != nil {
		return fmt.Errorf("delete column cards: %w", err)
	}
	if _, err := q.ExecContext(ctx, s.rebind(`DELETE FROM columns WHERE id = ?`), columnID); err != nil {
		return fmt.Errorf("delete column: %w", err)
	}

	remaining, err := s.orderedColumnIDs(ctx, q, boardID)
	if err != nil {
		return err
	}
	return resequence(ctx, q, s.rebind, "columns", remaining, boardID)
}

func (s *SQLStore) CreateCard(ctx context.Context, boardID, columnID int64, title, details string, position *int) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(q dbtx) error {
		var err error
		id, err = s.createCard(ctx, q, boardID, columnID, title, details, position)
		return err
	})
	return id, err
}

func (s *SQLStore) createCard(ctx context.Context, q dbtx, boardID, columnID int64, title, details string, position *int) (int64, error) {
	if err := s.columnInBoard(ctx, q, columnID, boardID); err != nil {
		return 0, err
	}

	ids, err := s.orderedCardIDs(ctx, q, columnID)
	if err != nil {
		return 0, err
	}
	index := ResolveInsertIndex(position, len(ids))

	var cardID int64
	if err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO cards (column_id, title, details, position) VALUES (?, ?, ?, ?) RETURNING id`),
		columnID, title, details, index,
	).Scan(&cardID); err != nil {
		return 0, fmt.Errorf("insert card: %w", err)
	}

	ids = insertID(ids, index, cardID)
	if err := resequence(ctx, q, s.rebind, "cards", ids, columnID); err != nil {
		return 0, err
	}
	return cardID, nil
}

func (s *SQLStore) UpdateCard(ctx context.Context, cardID, boardID int64, title, details *string, columnID *int64, position *int) error {
	return s.inTx(ctx, func(q dbtx) error {
		return s.updateCard(ctx, q, cardID, boardID, title, details, columnID, position)
	})
}

func (s *SQLStore) updateCard(ctx context.Context, q dbtx, cardID, boardID int64, title, details *string, columnID *int64, position *int) error {
	currentColumnID, err := s.cardInBoard(ctx, q, cardID, boardID)
	if err != nil {
		return err
	}

	if title != nil {
		if _, err := q.ExecContext(ctx,
			s.rebind(`UPDATE cards SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
			*title, cardID,
		); err != nil {
			return fmt.Errorf("update card title: %w", err)
		}
	}
	if details != nil {
		if _, err := q.ExecContext(ctx,
			s.rebind(`UPDATE cards SET details = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
			*details, cardID,
		); err != nil {
			return fmt.Errorf("update card details: %w", err)
		}
	}

	targetColumnID := currentColumnID
	if columnID != nil {
		if err := s.columnInBoard(ctx, q, *columnID, boardID); err != nil {
			return err
		}
		targetColumnID = *columnID
	}

	if position == nil && targetColumnID == currentColumnID {
		return nil
	}

	// Move path: the card leaves the source ordering before the destination
	// index is resolved, so a same-column move still yields a dense result.
	sourceIDs, err := s.orderedCardIDs(ctx, q, currentColumnID)
	if err != nil {
		return err
	}
	sourceIDs = removeID(sourceIDs, cardID)

	targetIDs := sourceIDs
	if targetColumnID != currentColumnID {
		targetIDs, err = s.orderedCardIDs(ctx, q, targetColumnID)
		if err != nil {
			return err
		}
	}

	index := ResolveInsertIndex(position, len(targetIDs))
	targetIDs = insertID(targetIDs, index, cardID)

	if _, err := q.ExecContext(ctx,
		s.rebind(`UPDATE cards SET column_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
		targetColumnID, cardID,
	); err != nil {
		return fmt.Errorf("update card column: %w", err)
	}

	if err := resequence(ctx, q, s.rebind, "cards", sourceIDs, currentColumnID); err != nil {
		return err
	}
	return resequence(ctx, q, s.rebind, "cards", targetIDs, targetColumnID)
}

func (s *SQLStore) DeleteCard(ctx context.Context, cardID, boardID int64) error {
	return s.inTx(ctx, func(q dbtx) error {
		return s.deleteCard(ctx, q, cardID, boardID)
	})
}

func (s *SQLStore) deleteCard(ctx context.Context, q dbtx, cardID, boardID int64) error {
	columnID, err := s.cardInBoard(ctx, q, cardID, boardID)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, s.rebind(`DELETE FROM cards WHERE id = ?`), cardID); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}

	remaining, err := s.orderedCardIDs(ctx, q, columnID)
	if err != nil {
		return err
	}
	return resequence(ctx, q, s.rebind, "cards", remaining, columnID)
}

func (s *SQLStore) orderedColumnIDs(ctx context.Context, q dbtx, boardID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		s.rebind(`SELECT id FROM columns WHERE board_id = ? ORDER BY position`),
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("ordered column ids: %w", err)
	}
	return scanIDs(rows)
}

func (s *SQLStore) orderedCardIDs(ctx context.Context, q dbtx, columnID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		s.rebind(`SELECT id FROM cards WHERE column_id = ? AND archived = ? ORDER BY position`),
		columnID, false,
	)
	if err != nil {
		return nil, fmt.Errorf("ordered card ids: %w", err)
	}
	return scanIDs(rows)
}

func (s *SQLStore) columnInBoard(ctx context.Context, q dbtx, columnID, boardID int64) error {
	var id int64
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT id FROM columns WHERE id = ? AND board_id = ?`),
		columnID, boardID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("column %d: %w", columnID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check column ownership: %w", err)
	}
	return nil
}

func (s *SQLStore) cardInBoard(ctx context.Context, q dbtx, cardID, boardID int64) (int64, error) {
	var columnID int64
	err := q.QueryRowContext(ctx, s.rebind(`
		SELECT cards.column_id
		FROM cards
		JOIN columns ON cards.column_id = columns.id
		WHERE cards.id = ? AND columns.board_id = ?
	`), cardID, boardID).Scan(&columnID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("card %d: %w", cardID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("check card ownership: %w", err)
	}
	return columnID, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
