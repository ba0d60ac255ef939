package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/waste2worth/backend/internal/data"
	"github.com/waste2worth/backend/internal/geo"
)

type createPostRequest struct {
	WasteType     string         `json:"wasteType" binding:"required"`
	Quantity      float64        `json:"quantity" binding:"required,gt=0"`
	Location      *data.Location `json:"location"`
	Address       string         `json:"address"`
	AvailableDate string         `json:"availableDate"`
	AvailableFrom string         `json:"availableFrom"`
	AvailableTo   string         `json:"availableTo"`
	SellForFree   bool           `json:"sellForFree"`
	ImageURL      string         `json:"imageUrl"`
}

func (s *Server) handleCreatePost(c *gin.Context) {
	claims := mustClaims(c)

	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := s.posts.Create(c.Request.Context(), &data.WastePost{
		ContributorID:    claims.UserID,
		ContributorEmail: claims.Email,
		WasteType:        req.WasteType,
		Quantity:         req.Quantity,
		Location:         req.Location,
		Address:          req.Address,
		AvailableDate:    req.AvailableDate,
		AvailableFrom:    req.AvailableFrom,
		AvailableTo:      req.AvailableTo,
		SellForFree:      req.SellForFree,
		ImageURL:         req.ImageURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// handleListPosts supports ?status=, ?mine=true (own posts),
// ?accepted=true (posts the caller accepted) and a nearby filter via
// ?lat=&lng=&radius_km=.
func (s *Server) handleListPosts(c *gin.Context) {
	claims := mustClaims(c)

	filter := data.PostFilter{Status: c.Query("status")}
	if c.Query("mine") == "true" {
		filter.ContributorID = claims.UserID
	}
	if c.Query("accepted") == "true" {
		filter.AcceptedBy = claims.UserID
	}

	posts, err := s.posts.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	if latStr, lngStr := c.Query("lat"), c.Query("lng"); latStr != "" && lngStr != "" {
		lat, err1 := strconv.ParseFloat(latStr, 64)
		lng, err2 := strconv.ParseFloat(lngStr, 64)
		if err1 != nil || err2 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
			return
		}
		radius := 10.0
		if r := c.Query("radius_km"); r != "" {
			if parsed, err := strconv.ParseFloat(r, 64); err == nil && parsed > 0 {
				radius = parsed
			}
		}
		posts = geo.Nearby(posts, data.Location{Lat: lat, Lng: lng}, radius)
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) handleGetPost(c *gin.Context) {
	post, err := s.posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

type updatePostRequest struct {
	WasteType     *string        `json:"wasteType"`
	Quantity      *float64       `json:"quantity"`
	Location      *data.Location `json:"location"`
	Address       *string        `json:"address"`
	AvailableDate *string        `json:"availableDate"`
	AvailableFrom *string        `json:"availableFrom"`
	AvailableTo   *string        `json:"availableTo"`
	SellForFree   *bool          `json:"sellForFree"`
	ImageURL      *string        `json:"imageUrl"`
}

func (s *Server) handleUpdatePost(c *gin.Context) {
	claims := mustClaims(c)

	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := bson.M{}
	if req.WasteType != nil {
		patch["waste_type"] = *req.WasteType
	}
	if req.Quantity != nil {
		if *req.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
			return
		}
		patch["quantity"] = *req.Quantity
	}
	if req.Location != nil {
		patch["location"] = req.Location
	}
	if req.Address != nil {
		patch["address"] = *req.Address
	}
	if req.AvailableDate != nil {
		patch["available_date"] = *req.AvailableDate
	}
	if req.AvailableFrom != nil {
		patch["available_from"] = *req.AvailableFrom
	}
	if req.AvailableTo != nil {
		patch["available_to"] = *req.AvailableTo
	}
	if req.SellForFree != nil {
		patch["sell_for_free"] = *req.SellForFree
	}
	if req.ImageURL != nil {
		patch["image_url"] = *req.ImageURL
	}
	if len(patch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	post, err := s.posts.Update(c.Request.Context(), c.Param("id"), claims.UserID, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) handleDeletePost(c *gin.Context) {
	claims := mustClaims(c)
	if err := s.posts.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// transition runs a status transition and returns the resulting post.
func (s *Server) transition(c *gin.Context, op func(ctx context.Context, postID, userID string) error) {
	claims := mustClaims(c)
	postID := c.Param("id")

	if err := op(c.Request.Context(), postID, claims.UserID); err != nil {
		writeError(c, err)
		return
	}
	post, err := s.posts.Get(c.Request.Context(), postID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) handleAcceptPost(c *gin.Context)  { s.transition(c, s.posts.Accept) }
func (s *Server) handleReleasePost(c *gin.Context) { s.transition(c, s.posts.Release) }
func (s *Server) handleUncollect(c *gin.Context)   { s.transition(c, s.posts.RevertToAccepted) }

// handleCollectRequest issues a fresh collection code and emails it to
// the contributor. Only the current acceptor may ask for one.
func (s *Server) handleCollectRequest(c *gin.Context) {
	claims := mustClaims(c)
	postID := c.Param("id")

	post, err := s.posts.Get(c.Request.Context(), postID)
	if err != nil {
		writeError(c, err)
		return
	}
	if post.Status != data.StatusAccepted {
		c.JSON(http.StatusConflict, gin.H{"error": "post is not awaiting collection"})
		return
	}
	if post.AcceptedBy != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the acceptor can request collection"})
		return
	}

	code, err := s.otp.Issue(postID, claims.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.mail.SendOTP(c.Request.Context(), post.ContributorEmail, code); err != nil {
		log.Printf("otp delivery to %s failed: %v", post.ContributorEmail, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to deliver the code, please retry"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": fmt.Sprintf("code sent to %s", post.ContributorEmail)})
}

type collectRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// handleCollect verifies the code the contributor read out and flips
// the post to collected.
func (s *Server) handleCollect(c *gin.Context) {
	claims := mustClaims(c)
	postID := c.Param("id")

	var req collectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.otp.Verify(postID, claims.UserID, req.OTP); err != nil {
		writeError(c, err)
		return
	}

	s.transition(c, s.posts.MarkCollected)
}
