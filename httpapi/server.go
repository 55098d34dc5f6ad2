// Package httpapi exposes the ledger operations over HTTP. The caller's
// identity arrives already verified in the X-User-ID header.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"runepoints/service"
)

const (
	// UserIDHeader carries the id set by the upstream authenticator
	UserIDHeader = "X-User-ID"
	userIDKey    = "userID"
)

// Deps are the services and policies the handlers need
type Deps struct {
	Users      service.UserService
	Wagering   service.WageringService
	Attendance service.AttendanceService
	Exchange   service.ExchangeService
	IsOperator func(userID string) bool
	Now        func() time.Time
}

// Server holds the HTTP handlers
type Server struct {
	users      service.UserService
	wagering   service.WageringService
	attendance service.AttendanceService
	exchange   service.ExchangeService
	isOperator func(string) bool
	now        func() time.Time
}

func NewServer(deps Deps) *Server {
	s := &Server{
		users:      deps.Users,
		wagering:   deps.Wagering,
		attendance: deps.Attendance,
		exchange:   deps.Exchange,
		isOperator: deps.IsOperator,
		now:        deps.Now,
	}
	if s.isOperator == nil {
		s.isOperator = func(string) bool { return false }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	api := r.Group("/", requireUser())
	api.POST("/users", s.register)
	api.GET("/me", s.me)
	api.GET("/me/history", s.history)
	api.GET("/me/exchanges", s.myExchanges)

	api.GET("/events", s.listEvents)
	api.GET("/events/:id", s.getEvent)
	api.POST("/events/:id/bets", s.placeBet)

	api.POST("/attendance", s.checkIn)

	api.GET("/rewards", s.listRewards)
	api.POST("/rewards/:id/exchange", s.requestExchange)

	admin := api.Group("/admin", s.requireOperator())
	admin.POST("/events", s.createEvent)
	admin.POST("/events/:id/resolve", s.resolveEvent)
	admin.POST("/attendance-tokens", s.issueToken)
	admin.PUT("/rewards/:id", s.upsertReward)

	return r
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserIDHeader})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func (s *Server) requireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.isOperator(currentUser(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator only"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"userID":   currentUser(c),
		}).Debug("HTTP request")
	}
}
