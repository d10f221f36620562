package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type emailRequest struct {
	Email string `json:"email"`
}

type nameRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

// bind decodes the json body into req, aborting with 400 on malformed input.
// Empty fields are left to the sign in validation.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWithError(c, http.StatusBadRequest, ErrorBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) getSignin(c *gin.Context) {
	c.JSON(http.StatusOK, clientOf(c).Machine.Snapshot())
}

func (s *Server) editEmail(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	m := clientOf(c).Machine
	respondSignin(c, m, m.EditEmail(req.Email))
}

func (s *Server) submitEmail(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	m := clientOf(c).Machine
	respondSignin(c, m, m.SubmitEmail(c.Request.Context(), req.Email))
}

func (s *Server) submitName(c *gin.Context) {
	var req nameRequest
	if !bind(c, &req) {
		return
	}
	m := clientOf(c).Machine
	respondSignin(c, m, m.SubmitName(req.FirstName, req.LastName))
}

func (s *Server) submitPassword(c *gin.Context) {
	var req passwordRequest
	if !bind(c, &req) {
		return
	}
	m := clientOf(c).Machine
	respondSignin(c, m, m.SubmitPassword(c.Request.Context(), req.Password))
}

func (s *Server) back(c *gin.Context) {
	m := clientOf(c).Machine
	respondSignin(c, m, m.Back())
}

func (s *Server) requestPasswordReset(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	m := clientOf(c).Machine
	respondSignin(c, m, m.RequestPasswordReset(c.Request.Context(), req.Email))
}

func (s *Server) signOut(c *gin.Context) {
	client := clientOf(c)
	client.SignOut()
	c.JSON(http.StatusOK, client.Machine.Snapshot())
}

func (s *Server) deleteAccount(c *gin.Context) {
	client := clientOf(c)
	if err := client.Session.DeleteAccount(c.Request.Context()); err != nil {
		respondFailure(c, err, "")
		return
	}
	client.SignOut()
	c.Status(http.StatusNoContent)
}
