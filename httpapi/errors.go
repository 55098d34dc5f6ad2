package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"runepoints/service"
)

var validationErrors = []error{
	service.ErrMissingUserID,
	service.ErrInvalidChoice,
	service.ErrInvalidAmount,
	service.ErrInvalidQuestion,
	service.ErrInvalidChoices,
	service.ErrInvalidDeadline,
	service.ErrInvalidUsername,
	service.ErrInvalidClassName,
	service.ErrInvalidReward,
	service.ErrInvalidExpiry,
}

var notFoundErrors = []error{
	service.ErrUserNotFound,
	service.ErrEventNotFound,
	service.ErrRewardNotFound,
	service.ErrInvalidToken,
}

var stateErrors = []error{
	service.ErrUserExists,
	service.ErrEventClosed,
	service.ErrAlreadyResolved,
	service.ErrDuplicateBet,
	service.ErrInsufficientBalance,
	service.ErrTokenExpired,
}

func statusFor(err error) int {
	switch {
	case matchesAny(err, validationErrors):
		return http.StatusBadRequest
	case matchesAny(err, notFoundErrors):
		return http.StatusNotFound
	case matchesAny(err, stateErrors):
		return http.StatusConflict
	case errors.Is(err, service.ErrConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeError maps service errors to a status. Unexpected errors are logged and
// reported without detail.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		message = "the ledger is busy, please try again"
	case http.StatusInternalServerError:
		log.WithFields(log.Fields{
			"path":  c.FullPath(),
			"error": err,
		}).Error("Request failed")
		message = "internal error"
	}
	c.JSON(status, gin.H{"error": message})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
