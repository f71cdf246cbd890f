package httpapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/gofiber/fiber/v2"
)

const (
	localClaims    = "claims"
	localUnmatched = "unmatched"
	localRequestID = "request_id"

	requestIDBytes = 8
)

// observe logs one line per request and feeds the request counter. The error
// handler is invoked here so the final status is known.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()

	reqID := c.Get(fiber.HeaderXRequestID)
	if reqID == "" {
		if id, err := common.MakeRandHexString(requestIDBytes); err == nil {
			reqID = id
		}
	}
	c.Locals(localRequestID, reqID)
	c.Set(fiber.HeaderXRequestID, reqID)

	if err := c.Next(); err != nil {
		if herr := s.errorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	route := c.Route().Path
	if c.Locals(localUnmatched) != nil {
		route = "unmatched"
	}

	s.metrics.Request(c.Method(), route, strconv.Itoa(status))
	s.log.Info(c.UserContext(), "http request",
		"request_id", reqID,
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"latency", time.Since(start),
	)
	return nil
}

// requireBearer verifies the Authorization header and stores the claims.
func (s *Server) requireBearer(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return s.fail(common.ErrorUnauthorized)
	}

	claims, err := s.tokens.Verify(strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix)))
	if err != nil {
		return s.fail(err)
	}

	c.Locals(localClaims, claims)
	return c.Next()
}

func (s *Server) notFound(c *fiber.Ctx) error {
	c.Locals(localUnmatched, true)
	return s.fail(fiber.ErrNotFound)
}
