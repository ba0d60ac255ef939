package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/waste2worth/backend/internal/auth"
	"github.com/waste2worth/backend/internal/data"
)

func (s *Server) handleGetUser(c *gin.Context) {
	user, err := s.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type volunteerUpload struct {
	Volunteers []struct {
		Name    string `json:"name" binding:"required"`
		Email   string `json:"email" binding:"required,email"`
		Contact string `json:"contact"`
		Address string `json:"address"`
	} `json:"volunteers" binding:"required,min=1"`
}

// handleAddVolunteers bulk-registers volunteer accounts under the
// calling NGO. Rows whose email already exists are skipped, so
// re-uploading the same roster is safe.
func (s *Server) handleAddVolunteers(c *gin.Context) {
	claims := mustClaims(c)
	if claims.Role != data.RoleNGO {
		c.JSON(http.StatusForbidden, gin.H{"error": "only NGO accounts manage volunteers"})
		return
	}

	var req volunteerUpload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	volunteers := make([]*data.User, 0, len(req.Volunteers))
	for _, v := range req.Volunteers {
		// volunteers get a placeholder credential; they reset it through
		// the normal login flow before first use
		hashed, err := auth.HashPassword(uuid.NewString())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to provision accounts"})
			return
		}
		volunteers = append(volunteers, &data.User{
			Name:     v.Name,
			Email:    v.Email,
			Password: hashed,
			Role:     data.RoleVolunteer,
			Contact:  v.Contact,
			Address:  v.Address,
			NgoID:    claims.UserID,
		})
	}

	added, err := s.users.AddVolunteers(c.Request.Context(), claims.UserID, volunteers)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added, "skipped": len(volunteers) - added})
}

func (s *Server) handleListVolunteers(c *gin.Context) {
	claims := mustClaims(c)
	if claims.Role != data.RoleNGO {
		c.JSON(http.StatusForbidden, gin.H{"error": "only NGO accounts manage volunteers"})
		return
	}

	volunteers, err := s.users.ListVolunteers(c.Request.Context(), claims.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"volunteers": volunteers})
}

// handleCollectedTotal sums collected quantities over the NGO itself
// and all of its volunteers.
func (s *Server) handleCollectedTotal(c *gin.Context) {
	claims := mustClaims(c)
	if claims.Role != data.RoleNGO {
		c.JSON(http.StatusForbidden, gin.H{"error": "only NGO accounts have a collected total"})
		return
	}

	volunteers, err := s.users.ListVolunteers(c.Request.Context(), claims.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	ids := make([]string, 0, len(volunteers)+1)
	ids = append(ids, claims.UserID)
	for _, v := range volunteers {
		ids = append(ids, v.ID.Hex())
	}

	total, err := s.posts.CollectedQuantity(c.Request.Context(), ids)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalKg": total})
}
