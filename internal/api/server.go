package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/reyanshafi/mini-social-network/internal/receipts"
	"github.com/reyanshafi/mini-social-network/pkg/interfaces"
	"github.com/reyanshafi/mini-social-network/pkg/types"
)

// Registry is the presence surface the API needs, kept narrow to avoid
// coupling to the websocket registry implementation.
type Registry interface {
	OnlineCount() int
}

// Server is the REST pass-through in front of the message store: history
// retrieval, unread counts, page-load mark-read, and conversation management.
// No business logic lives here; the live synchronizer and these endpoints
// share the store, so what one reports the other reflects.
type Server struct {
	store    interfaces.MessageStore
	receipts *receipts.Synchronizer
	registry Registry
	router   *http.ServeMux
}

// NewServer creates the REST server and sets up its routes.
func NewServer(store interfaces.MessageStore, receiptSync *receipts.Synchronizer, registry Registry) *Server {
	s := &Server{
		store:    store,
		receipts: receiptSync,
		registry: registry,
		router:   http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/messages/unread-count", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleUnreadCount))))
	s.router.Handle("/api/messages/read/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleMarkRead))))
	s.router.Handle("/api/messages/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleMessages))))
	s.router.Handle("/api/conversations", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleConversations))))
	s.router.Handle("/api/conversations/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleConversationWith))))
	s.router.Handle("/api/users", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleUsers))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

// ServeHTTP implements http.Handler for integration with the HTTP server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type CreateUserRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Database    string    `json:"database"`
	OnlineUsers int       `json:"online_users"`
}

// requestUser extracts the authenticated identity. Authentication mechanics
// are an external collaborator; by the time a request lands here the identity
// is assumed verified, so a plain query parameter carries it.
func requestUser(r *http.Request) string {
	return r.URL.Query().Get("user_id")
}

// GET /api/messages/unread-count?user_id=U
func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := requestUser(r)
	if !types.IsValidUserID(userID) {
		s.sendError(w, "Valid user_id is required", http.StatusBadRequest)
		return
	}

	count, err := s.store.UnreadCount(r.Context(), userID)
	if err != nil {
		s.sendError(w, "Failed to count unread messages", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}

// GET /api/messages/{conversationId}?user_id=U
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conversationID := pathTail(r.URL.Path, "/api/messages/")
	if conversationID == "" {
		s.sendError(w, "Conversation ID required", http.StatusBadRequest)
		return
	}

	userID := requestUser(r)
	if !types.IsValidUserID(userID) {
		s.sendError(w, "Valid user_id is required", http.StatusBadRequest)
		return
	}

	// Membership check before returning history.
	if _, err := s.store.FindOtherParticipant(r.Context(), conversationID, userID); err != nil {
		s.sendStoreError(w, err)
		return
	}

	messages, err := s.store.ListMessages(r.Context(), conversationID)
	if err != nil {
		s.sendError(w, "Failed to list messages", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*types.Message{}
	}

	s.sendJSON(w, http.StatusOK, messages)
}

// PUT /api/messages/read/{conversationId}?user_id=U
//
// The page-load variant of the read transition: catch-up only, nobody is
// notified. The live markAsSeen path goes over the WebSocket.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conversationID := pathTail(r.URL.Path, "/api/messages/read/")
	if conversationID == "" {
		s.sendError(w, "Conversation ID required", http.StatusBadRequest)
		return
	}

	userID := requestUser(r)
	if !types.IsValidUserID(userID) {
		s.sendError(w, "Valid user_id is required", http.StatusBadRequest)
		return
	}

	if _, err := s.store.FindOtherParticipant(r.Context(), conversationID, userID); err != nil {
		s.sendStoreError(w, err)
		return
	}

	if err := s.receipts.MarkRead(r.Context(), conversationID, userID); err != nil {
		s.sendError(w, "Failed to mark messages as read", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]string{"message": "Messages marked as read"})
}

// GET /api/conversations?user_id=U
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := requestUser(r)
	if !types.IsValidUserID(userID) {
		s.sendError(w, "Valid user_id is required", http.StatusBadRequest)
		return
	}

	conversations, err := s.store.ListConversations(r.Context(), userID)
	if err != nil {
		s.sendError(w, "Failed to list conversations", http.StatusInternalServerError)
		return
	}
	if conversations == nil {
		conversations = []*types.Conversation{}
	}

	s.sendJSON(w, http.StatusOK, conversations)
}

// POST /api/conversations/{userId}?user_id=U
func (s *Server) handleConversationWith(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	otherID := pathTail(r.URL.Path, "/api/conversations/")
	userID := requestUser(r)
	if !types.IsValidUserID(userID) || !types.IsValidUserID(otherID) {
		s.sendError(w, "Valid user_id and target user are required", http.StatusBadRequest)
		return
	}
	if userID == otherID {
		s.sendError(w, "Cannot start a conversation with yourself", http.StatusBadRequest)
		return
	}

	conversation, err := s.store.CreateOrGetConversation(r.Context(), userID, otherID)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, conversation)
}

// POST /api/users registers the display attributes backing an identity.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !types.IsValidUserID(req.UserID) {
		s.sendError(w, types.ErrInvalidUserID.Error(), http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		s.sendError(w, "Username is required", http.StatusBadRequest)
		return
	}

	user := &types.DisplayAttributes{UserID: req.UserID, Username: req.Username, Avatar: req.Avatar}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateUser) {
			s.sendError(w, "User already exists", http.StatusConflict)
			return
		}
		s.sendError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, http.StatusCreated, user)
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"

	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		OnlineUsers: s.registry.OnlineCount(),
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	s.sendJSON(w, code, response)
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// sendStoreError maps store sentinels onto HTTP statuses.
func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrConversationNotFound):
		s.sendError(w, "Conversation not found", http.StatusNotFound)
	case errors.Is(err, interfaces.ErrNotParticipant):
		s.sendError(w, "User not authorized for this conversation", http.StatusForbidden)
	case errors.Is(err, interfaces.ErrUserNotFound):
		s.sendError(w, "User not found", http.StatusNotFound)
	default:
		s.sendError(w, "Server error", http.StatusInternalServerError)
	}
}

func pathTail(path, prefix string) string {
	tail := strings.TrimPrefix(path, prefix)
	if tail == "" {
		return ""
	}
	return strings.Split(tail, "/")[0]
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		next.ServeHTTP(w, r)
	})
}
