package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waste2worth/backend/internal/auth"
	"github.com/waste2worth/backend/internal/data"
)

var validRoles = map[string]bool{
	data.RoleContributor: true,
	data.RoleVolunteer:   true,
	data.RoleRecycler:    true,
	data.RoleNGO:         true,
}

type registerRequest struct {
	Name     string         `json:"name" binding:"required"`
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required,min=6"`
	Role     string         `json:"role" binding:"required"`
	Address  string         `json:"address"`
	Contact  string         `json:"contact"`
	Location *data.Location `json:"location"`
}

type authResponse struct {
	Token     string     `json:"token"`
	UserID    string     `json:"userId"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *data.User `json:"user"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validRoles[req.Role] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	user, err := s.users.Create(c.Request.Context(), &data.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hashed,
		Role:     req.Role,
		Address:  req.Address,
		Contact:  req.Contact,
		Location: req.Location,
	})
	if err != nil {
		log.Printf("create user failed: %v", err)
		writeError(c, err)
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, authResponse{
		Token:     token,
		UserID:    user.ID.Hex(),
		ExpiresAt: expiresAt,
		User:      user,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		// same answer for unknown email and bad password
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, authResponse{
		Token:     token,
		UserID:    user.ID.Hex(),
		ExpiresAt: expiresAt,
		User:      user,
	})
}
