package server

import (
	"net/http"

	"github.com/Luismorlan/hexfeed/feedsync"
	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/signin"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// Error codes of the API, sent as {"code": ..., "msg": ...}.
const (
	ErrorSessionRequired  = "session_required"
	ErrorSessionNotFound  = "session_not_found"
	ErrorNotAuthenticated = "not_authenticated"
	ErrorBadRequest       = "bad_request"
	ErrorBusy             = "busy"
	ErrorSuperseded       = "superseded"
	ErrorWrongState       = "wrong_state"
	ErrorEmptyTitle       = "empty_title"
	ErrorEmptyComment     = "empty_comment"
	ErrorInternal         = "internal"
)

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "msg": msg})
}

// failureStatus maps a classified gateway failure to an HTTP status.
func failureStatus(kind gateway.FailureKind) int {
	switch kind {
	case gateway.NetworkUnavailable:
		return http.StatusServiceUnavailable
	case gateway.PermissionDenied:
		return http.StatusForbidden
	case gateway.NotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondFailure writes err as a gateway failure. msg replaces the failure
// message when set.
func respondFailure(c *gin.Context, err error, msg string) {
	var failure *feedsync.Failure
	kind := gateway.Classify(err)
	if errors.As(err, &failure) {
		kind = failure.Kind
	}
	if msg == "" {
		msg = err.Error()
	}
	Logger.Log.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	abortWithError(c, failureStatus(kind), kind.String(), msg)
}

// respondSignin answers a sign in step with the resulting snapshot. Domain
// errors keep the snapshot so the screen can render the error next to the
// field.
func respondSignin(c *gin.Context, m *signin.Machine, err error) {
	var signinErr *signin.Error
	switch {
	case err == nil:
		c.JSON(http.StatusOK, m.Snapshot())
	case errors.As(err, &signinErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"code":     signinErr.Kind.String(),
			"msg":      signinErr.Message,
			"field":    signinErr.Field,
			"snapshot": m.Snapshot(),
		})
	case errors.Is(err, signin.ErrBusy):
		abortWithError(c, http.StatusConflict, ErrorBusy, err.Error())
	case errors.Is(err, signin.ErrSuperseded):
		abortWithError(c, http.StatusConflict, ErrorSuperseded, err.Error())
	case errors.Is(err, signin.ErrWrongState):
		abortWithError(c, http.StatusConflict, ErrorWrongState, err.Error())
	default:
		Logger.Log.Errorf("unexpected sign in error: %v", err)
		abortWithError(c, http.StatusInternalServerError, ErrorInternal, err.Error())
	}
}
