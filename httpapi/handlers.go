package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 50

type registerRequest struct {
	Username string `json:"username" binding:"required"`
}

type placeBetRequest struct {
	Choice *int  `json:"choice" binding:"required"`
	Amount int64 `json:"amount"`
}

type checkInRequest struct {
	Token string `json:"token" binding:"required"`
}

type createEventRequest struct {
	Question string    `json:"question" binding:"required"`
	Choices  []string  `json:"choices" binding:"required"`
	Deadline time.Time `json:"deadline" binding:"required"`
}

type resolveRequest struct {
	Choice *int `json:"choice" binding:"required"`
}

type issueTokenRequest struct {
	ClassName string     `json:"class_name" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type upsertRewardRequest struct {
	Name string `json:"name" binding:"required"`
	Cost int64  `json:"cost"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.users.Register(c.Request.Context(), currentUser(c), req.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) me(c *gin.Context) {
	user, err := s.users.GetUser(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) history(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	entries, err := s.users.GetHistory(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (s *Server) myExchanges(c *gin.Context) {
	requests, err := s.exchange.ListRequests(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (s *Server) listEvents(c *gin.Context) {
	listing, err := s.wagering.ListEvents(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) getEvent(c *gin.Context) {
	summary, err := s.wagering.GetEventSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) placeBet(c *gin.Context) {
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	bet, err := s.wagering.PlaceBet(c.Request.Context(), c.Param("id"), currentUser(c), *req.Choice, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bet)
}

func (s *Server) checkIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.attendance.GrantAttendance(c.Request.Context(), currentUser(c), req.Token, s.now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listRewards(c *gin.Context) {
	rewards, err := s.exchange.ListRewards(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards})
}

func (s *Server) requestExchange(c *gin.Context) {
	request, err := s.exchange.RequestExchange(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (s *Server) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	event, err := s.wagering.CreateEvent(c.Request.Context(), currentUser(c), req.Question, req.Choices, req.Deadline)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (s *Server) resolveEvent(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.wagering.ResolveEvent(c.Request.Context(), c.Param("id"), *req.Choice)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) issueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, err := s.attendance.IssueToken(c.Request.Context(), currentUser(c), req.ClassName, req.ExpiresAt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, token)
}

func (s *Server) upsertReward(c *gin.Context) {
	var req upsertRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	reward, err := s.exchange.UpsertReward(c.Request.Context(), c.Param("id"), req.Name, req.Cost)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reward)
}
