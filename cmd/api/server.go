package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/waste2worth/backend/internal/auth"
	"github.com/waste2worth/backend/internal/chat"
	"github.com/waste2worth/backend/internal/data"
	"github.com/waste2worth/backend/internal/middleware"
	"github.com/waste2worth/backend/internal/otp"
)

// userStore and postStore are the store surfaces the handlers use;
// tests substitute in-memory fakes.
type userStore interface {
	Create(ctx context.Context, user *data.User) (*data.User, error)
	GetByEmail(ctx context.Context, email string) (*data.User, error)
	GetByID(ctx context.Context, userID string) (*data.User, error)
	AddVolunteers(ctx context.Context, ngoID string, volunteers []*data.User) (int, error)
	ListVolunteers(ctx context.Context, ngoID string) ([]*data.User, error)
}

type postStore interface {
	Create(ctx context.Context, post *data.WastePost) (*data.WastePost, error)
	Get(ctx context.Context, postID string) (*data.WastePost, error)
	List(ctx context.Context, filter data.PostFilter) ([]*data.WastePost, error)
	Accept(ctx context.Context, postID, userID string) error
	Release(ctx context.Context, postID, userID string) error
	MarkCollected(ctx context.Context, postID, userID string) error
	RevertToAccepted(ctx context.Context, postID, userID string) error
	Update(ctx context.Context, postID, contributorID string, patch bson.M) (*data.WastePost, error)
	Delete(ctx context.Context, postID, contributorID string) error
	CollectedQuantity(ctx context.Context, collectorIDs []string) (float64, error)
}

type otpMailer interface {
	SendOTP(ctx context.Context, email, otp string) error
}

// Server holds the wired dependencies behind the HTTP handlers.
type Server struct {
	users   userStore
	posts   postStore
	chat    *chat.Service
	stream  *chat.Stream
	auth    *auth.JWTManager
	otp     *otp.Manager
	mail    otpMailer
	limiter *middleware.LimiterStore
}

// newServer returns a ready-to-use Server wired with stores, the chat
// core and the auth manager. limiter and mail may be nil in tests.
func newServer(users userStore, posts postStore, chatSvc *chat.Service, stream *chat.Stream, authMgr *auth.JWTManager, otpMgr *otp.Manager, mail otpMailer, limiter *middleware.LimiterStore) *Server {
	return &Server{
		users:   users,
		posts:   posts,
		chat:    chatSvc,
		stream:  stream,
		auth:    authMgr,
		otp:     otpMgr,
		mail:    mail,
		limiter: limiter,
	}
}

// routes registers the full API surface on the given engine.
func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	// register/login are unauthenticated but throttled per account
	authGroup := v1.Group("/auth")
	if s.limiter != nil {
		authGroup.Use(middleware.RateLimit(s.limiter))
	}
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)

	authed := v1.Group("")
	authed.Use(authRequired(s.auth))

	authed.GET("/users/:id", s.handleGetUser)
	authed.POST("/ngo/volunteers", s.handleAddVolunteers)
	authed.GET("/ngo/volunteers", s.handleListVolunteers)
	authed.GET("/ngo/collected-total", s.handleCollectedTotal)

	authed.POST("/posts", s.handleCreatePost)
	authed.GET("/posts", s.handleListPosts)
	authed.GET("/posts/:id", s.handleGetPost)
	authed.PUT("/posts/:id", s.handleUpdatePost)
	authed.DELETE("/posts/:id", s.handleDeletePost)
	authed.POST("/posts/:id/accept", s.handleAcceptPost)
	authed.POST("/posts/:id/release", s.handleReleasePost)
	authed.POST("/posts/:id/collect/request", s.handleCollectRequest)
	authed.POST("/posts/:id/collect", s.handleCollect)
	authed.POST("/posts/:id/uncollect", s.handleUncollect)
	authed.GET("/posts/:id/unread", s.handlePostUnread)

	authed.POST("/chats", s.handleOpenChat)
	authed.GET("/chats", s.handleListChats)
	authed.GET("/chats/unread", s.handleTotalUnread)
	authed.GET("/chats/:id/messages", s.handleListMessages)
	authed.POST("/chats/:id/messages", s.handleSendMessage)
	authed.POST("/chats/:id/read", s.handleMarkRead)

	// the websocket authenticates via query token, not the header
	v1.GET("/chats/:id/ws", s.handleChatWS)
}

// writeError maps the store error taxonomy onto HTTP statuses. Unknown
// errors are logged and surface as a retryable 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, data.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, data.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, data.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, data.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "operation not allowed in the post's current status"})
	case errors.Is(err, data.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	case errors.Is(err, otp.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid otp"})
	case errors.Is(err, otp.ErrExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "otp expired"})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error, please retry"})
	}
}
