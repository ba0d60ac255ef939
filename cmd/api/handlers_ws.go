package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/waste2worth/backend/internal/chat"
)

// handleChatWS upgrades to a websocket and pushes full message
// snapshots for one thread, echoes included. Browsers cannot set the
// Authorization header on a native WebSocket, so the token rides in the
// token query param.
func (s *Server) handleChatWS(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := s.auth.VerifyToken(tokenStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	thread, err := s.chat.Thread(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !thread.IsParticipant(claims.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this thread"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		return // Accept already wrote the error response
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	// push-only: reading just keeps control frames flowing
	ctx := conn.CloseRead(c.Request.Context())

	// snapshots are full state, so when the socket lags we drop the
	// oldest queued one and keep the newest
	snapshots := make(chan []chat.ViewMessage, 16)
	deliver := func(v []chat.ViewMessage) {
		for {
			select {
			case snapshots <- v:
				return
			default:
				select {
				case <-snapshots:
				default:
				}
			}
		}
	}

	sess, err := chat.OpenSession(ctx, s.chat, s.stream, s.users, s.posts, chat.SessionParams{
		PostID:        thread.PostID,
		ContributorID: thread.ContributorID,
		CollectorID:   thread.CollectorID,
		UserID:        claims.UserID,
		Deliver:       deliver,
		OnError: func(err error) {
			log.Printf("live feed error on thread %s: %v", thread.ID.Hex(), err)
		},
	})
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "cannot open session")
		return
	}
	defer sess.Close()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case v := <-snapshots:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := wsjson.Write(writeCtx, conn, v)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
