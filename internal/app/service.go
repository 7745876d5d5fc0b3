package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"kanban/api/internal/ai"
	"kanban/api/internal/config"
	"kanban/api/internal/session"
	"kanban/api/internal/store"
)

const (
	maxColumnTitleLen = 200
	maxCardTitleLen   = 500
	maxCardDetailsLen = 5000
)

// CompletionClient is the outbound LLM call, request in, completion out.
type CompletionClient interface {
	Complete(ctx context.Context, messages []ai.Message) (content string, model string, err error)
}

// Service orchestrates the board repository, the session store, and the
// completion client behind the HTTP surface.
type Service struct {
	cfg      config.Config
	store    *store.SQLStore
	sessions session.Store
	ai       CompletionClient
}

func New(cfg config.Config, dataStore *store.SQLStore, sessions session.Store, client CompletionClient) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		ai:       client,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) DefaultUser() string {
	return s.cfg.DefaultUser
}

// Session is an authenticated login.
type Session struct {
	Token    string
	UserID   int64
	Username string
}

// Login resolves (or lazily creates) the user and issues an opaque session
// token. When an auth password is configured it is verified against the
// user's stored bcrypt hash, hashing the configured password on first login.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Session{}, validationError("username is required")
	}

	user, err := s.store.GetOrCreateUser(ctx, username)
	if err != nil {
		return Session{}, err
	}

	if s.cfg.AuthPassword != "" {
		if user.PasswordHash == "" {
			if password != s.cfg.AuthPassword {
				return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials", nil)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return Session{}, fmt.Errorf("hash password: %w", err)
			}
			if err := s.store.SetUserPassword(ctx, user.ID, string(hash)); err != nil {
				return Session{}, err
			}
		} else if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
			return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials", nil)
		}
	}

	token := newSessionToken()
	data := session.Data{UserID: user.ID, Username: user.Username}
	if err := s.sessions.Save(ctx, token, data, s.cfg.SessionTTL); err != nil {
		return Session{}, err
	}
	return Session{Token: token, UserID: user.ID, Username: user.Username}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (session.Data, error) {
	return s.sessions.Lookup(ctx, token)
}

func newSessionToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// Board returns the user's full snapshot, creating user, board, and seed
// data on first access.
func (s *Service) Board(ctx context.Context, username string) (store.BoardView, error) {
	user, err := s.store.GetOrCreateUser(ctx, username)
	if err != nil {
		return store.BoardView{}, err
	}
	return s.store.FetchBoard(ctx, user.ID)
}

func (s *Service) CreateColumn(ctx context.Context, username, title string, position *int) (string, error) {
	if err := validateTitle(title, maxColumnTitleLen); err != nil {
		return "", err
	}
	board, err := s.resolveBoard(ctx, username)
	if err != nil {
		return "", err
	}
	id, err := s.store.CreateColumn(ctx, board.ID, title, position)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Service) UpdateColumn(ctx context.Context, username, columnID string, title *string, position *int) error {
	id, err := parseEntityID(columnID, "column")
	if err != nil {
		return err
	}
	if title != nil {
		if err := validateTitle(*title, maxColumnTitleLen); err != nil {
			return err
		}
	}
	board, err := s.resolveBoard(ctx, username)
	if err != nil {
		return err
	}
	return s.store.UpdateColumn(ctx, id, board.ID, title, position)
}

func (s *Service) DeleteColumn(ctx context.Context, username, columnID string) error {
	id, err := parseEntityID(columnID, "column")
	if err != nil {
		return err
	}
	board, err := s.resolveBoard(ctx, username)
	if err != nil {
		return err
	}
	return s.store.DeleteColumn(ctx, id, board.ID)
}

func (s *Service) CreateCard(ctx context.Context, username, columnID, title, details string, position *int) (string, error) {
	column, err := parseEntityID(columnID, "column")
	if err != nil {
		return "", err
	}
	if err := validateTitle(title, maxCardTitleLen); err != nil {
		return "", err
	}
	if err := validateDetails(details); err != nil {
		return "", err
	}
	board, err := s.resolveBoard(ctx, username)
	if err != nil {
		return "", err
	}
	id, err := s.store.CreateCard(ctx, board.ID, column, title, details, position)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Service) UpdateCard(ctx context.Context, username, cardID string, title, details *string, columnID *string, position *int) error {
	card, err := parseEntityID(cardID, "card")
	if err != nil {
		return err
	}
	if title != nil {
		if err := validateTitle(*title, maxCardTitleLen); err != nil {
			return err
		}
	}
	if details != nil {
		if err := validateDetails(*details); err != nil {
			return err
		}
	}
	var targetColumn *int64
	if columnID != nil {
		column, err := parseEntityID(*columnID, "column")
		if err != nil {
			return err
		}
		targetColumn = &column
	}
	board, err := s.resolveBoard(ctx, username)
	if err != nil {
		return err
	}
	return s.store.UpdateCard(ctx, card, board.ID, title, details, targetColumn, position)
}

func (s *Service) DeleteCard(ctx context.Context, username, cardID string) error {
	card, err := parseEntityID(cardID, "card")
	if err != nil {
		return err
	}
	board, err := s.resolveBoard(ctx, username)
	if err != nil {
		return err
	}
	return s.store.DeleteCard(ctx, card, board.ID)
}

func (s *Service) resolveBoard(ctx context.Context, username string) (store.Board, error) {
	user, err := s.store.GetOrCreateUser(ctx, username)
	if err != nil {
		return store.Board{}, err
	}
	return s.store.GetOrCreateBoard(ctx, user.ID)
}

func parseEntityID(raw, kind string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, validationError(kind + " id must be an integer")
	}
	return id, nil
}

func validateTitle(title string, maxLen int) error {
	if len(title) == 0 {
		return validationError("title is required")
	}
	if len(title) > maxLen {
		return validationError(fmt.Sprintf("title exceeds %d characters", maxLen))
	}
	return nil
}

func validateDetails(details string) error {
	if len(details) > maxCardDetailsLen {
		return validationError(fmt.Sprintf("details exceed %d characters", maxCardDetailsLen))
	}
	return nil
}

// ChatRequest is the inbound conversation state.
type ChatRequest struct {
	Message      string       `json:"message"`
	History      []ai.Message `json:"history"`
	ApplyUpdates *bool        `json:"applyUpdates"`
}

// ChatResponse carries the model reply, the validated actions, and the
// post-application board snapshot.
type ChatResponse struct {
	Reply   string           `json:"reply"`
	Actions []ai.Action      `json:"actions"`
	Board   *store.BoardView `json:"board"`
	Model   *string          `json:"model"`
}

// Chat forwards the conversation to the completion client, parses the
// structured reply, and applies any returned actions as one batch.
func (s *Service) Chat(ctx context.Context, username string, req ChatRequest) (ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return ChatResponse{}, validationError("message is required")
	}
	for _, turn := range req.History {
		if turn.Role != ai.RoleUser && turn.Role != ai.RoleAssistant {
			return ChatResponse{}, validationError("history roles must be user or assistant")
		}
	}

	user, err := s.store.GetOrCreateUser(ctx, username)
	if err != nil {
		return ChatResponse{}, err
	}
	board, err := s.store.FetchBoard(ctx, user.ID)
	if err != nil {
		return ChatResponse{}, err
	}

	messages, err := ai.BuildMessages(board, req.History, req.Message)
	if err != nil {
		return ChatResponse{}, err
	}
	content, model, err := s.ai.Complete(ctx, messages)
	if err != nil {
		return ChatResponse{}, err
	}
	structured, err := ai.ParseStructuredOutput(content)
	if err != nil {
		return ChatResponse{}, err
	}

	applyUpdates := req.ApplyUpdates == nil || *req.ApplyUpdates
	if applyUpdates && len(structured.Actions) > 0 {
		boardRow, err := s.store.GetOrCreateBoard(ctx, user.ID)
		if err != nil {
			return ChatResponse{}, err
		}
		if err := s.applyActions(ctx, boardRow.ID, structured.Actions); err != nil {
			return ChatResponse{}, err
		}
		board, err = s.store.FetchBoard(ctx, user.ID)
		if err != nil {
			return ChatResponse{}, err
		}
	}

	response := ChatResponse{
		Reply:   structured.Reply,
		Actions: structured.Actions,
		Board:   &board,
	}
	if model != "" {
		response.Model = &model
	}
	return response, nil
}
