package httpapi

import (
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/users"
	"github.com/gofiber/fiber/v2"
)

type registerResponse struct {
	ID string `json:"id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type welcomeResponse struct {
	Message string `json:"message"`
}

func (s *Server) welcome(c *fiber.Ctx) error {
	return c.JSON(welcomeResponse{Message: "Welcome to the auth-service!"})
}

func (s *Server) register(c *fiber.Ctx) error {
	var reg users.Registration
	if err := s.decode(c, &reg); err != nil {
		return s.fail(err)
	}
	reg.IsAdmin = false

	user, err := s.users.Register(c.UserContext(), reg)
	if err != nil {
		return s.fail(err)
	}

	return c.Status(fiber.StatusCreated).JSON(registerResponse{ID: user.ID})
}

func (s *Server) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := s.decode(c, &req); err != nil {
		return s.fail(err)
	}

	token, err := s.users.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return s.fail(err)
	}

	return c.JSON(loginResponse{AccessToken: token})
}

func (s *Server) me(c *fiber.Ctx) error {
	claims, ok := c.Locals(localClaims).(*auth.Claims)
	if !ok {
		return s.fail(common.ErrorUnauthorized)
	}

	view, err := s.users.Profile(c.UserContext(), claims.Subject)
	if err != nil {
		return s.fail(err)
	}
	return c.JSON(view)
}

// decode reads a JSON body regardless of the declared content type.
func (s *Server) decode(c *fiber.Ctx, v any) error {
	if err := c.App().Config().JSONDecoder(c.Body(), v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", common.ErrorValidation, err)
	}
	return nil
}
