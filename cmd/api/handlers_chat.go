package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waste2worth/backend/internal/chat"
	"github.com/waste2worth/backend/internal/data"
)

type openChatRequest struct {
	PostID string `json:"postId" binding:"required"`
}

// handleOpenChat resolves (or lazily creates) the thread between a
// post's contributor and its acceptor. Threads only exist once someone
// has accepted the post, so there is always exactly one counterpart.
func (s *Server) handleOpenChat(c *gin.Context) {
	claims := mustClaims(c)

	var req openChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := s.posts.Get(c.Request.Context(), req.PostID)
	if err != nil {
		writeError(c, err)
		return
	}
	if post.AcceptedBy == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "post has no acceptor to chat with yet"})
		return
	}
	if claims.UserID != post.ContributorID && claims.UserID != post.AcceptedBy {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this post's chat"})
		return
	}

	thread, err := s.chat.OpenThread(c.Request.Context(), req.PostID, post.ContributorID, post.AcceptedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (s *Server) handleListChats(c *gin.Context) {
	claims := mustClaims(c)

	threads, err := s.chat.ListThreads(c.Request.Context(), claims.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": threads})
}

func (s *Server) handleTotalUnread(c *gin.Context) {
	claims := mustClaims(c)

	total, err := s.chat.TotalUnread(c.Request.Context(), claims.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalUnread": total})
}

// handlePostUnread returns the unread badge for one post card, or JSON
// null when the caller has no thread for that post yet.
func (s *Server) handlePostUnread(c *gin.Context) {
	claims := mustClaims(c)

	badge, err := s.chat.UnreadForPost(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, badge)
}

func (s *Server) handleListMessages(c *gin.Context) {
	claims := mustClaims(c)

	msgs, err := s.chat.Messages(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if msgs == nil {
		msgs = []*data.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type sendMessageRequest struct {
	Text     string `json:"text" binding:"required"`
	ClientID string `json:"clientId"`
	PostID   string `json:"postId"`
}

func (s *Server) handleSendMessage(c *gin.Context) {
	claims := mustClaims(c)

	// sends are throttled per sender, not per account-under-attack
	if s.limiter != nil && !s.limiter.Allow("send:"+claims.UserID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := s.chat.Send(c.Request.Context(), chat.SendRequest{
		ThreadID: c.Param("id"),
		SenderID: claims.UserID,
		Text:     req.Text,
		PostID:   req.PostID,
		ClientID: req.ClientID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleMarkRead(c *gin.Context) {
	claims := mustClaims(c)

	if err := s.chat.MarkRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}
