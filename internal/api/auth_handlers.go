package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/mesh"
	"github.com/Armour007/grc-backend/internal/repository"
	"github.com/Armour007/grc-backend/internal/utils"
)

type registerRequest struct {
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Role       grc.Role `json:"role"`
	Department string   `json:"department"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the body of a successful register or login.
type authResponse struct {
	ID         uuid.UUID `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       grc.Role  `json:"role"`
	Department string    `json:"department"`
	Token      string    `json:"token"`
}

func (s *Server) authResponse(u *database.User) (*authResponse, error) {
	tok, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &authResponse{u.ID, u.Username, u.Email, u.Role, u.Department, tok}, nil
}

// Register handles POST /api/auth/register.
func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if !bind(s, c, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Email == "" || req.Password == "" {
		recordAuthFailure("register_invalid")
		s.respondError(c, grc.Validation("Please enter all required fields: username, email, password"))
		return
	}
	email := utils.NormalizeEmail(req.Email)
	if req.Role == "" {
		req.Role = grc.Employee
	}
	err := grc.First(
		utils.ValidateUsername(req.Username),
		utils.ValidateEmail(email),
		utils.ValidatePassword(req.Password),
		grc.MaxLen("department", req.Department, 100),
	)
	if err == nil && !req.Role.Valid() {
		err = grc.Validation("Invalid role: %s", req.Role)
	}
	if err != nil {
		recordAuthFailure("register_invalid")
		s.respondError(c, err)
		return
	}

	st, err := s.store()
	if err != nil {
		s.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	taken, err := st.Users().EmailTaken(ctx, email)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if taken {
		recordAuthFailure("register_duplicate")
		s.respondError(c, grc.Validation("User with this email already exists"))
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	now := s.now().UTC()
	u := &database.User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(req.Username),
		Email:        email,
		PasswordHash: hash,
		Role:         req.Role,
		Department:   req.Department,
		Status:       grc.UserActive,
		Permissions:  database.Strings{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := st.Users().Insert(ctx, u); err != nil {
		s.respondError(c, userDuplicate(err))
		return
	}
	s.publishChange(ctx, string(grc.Users), u.ID, mesh.OpCreate, u.ID)

	resp, err := s.authResponse(u)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info().Str("user_id", u.ID.String()).Str("role", string(u.Role)).Msg("user registered")
	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/auth/login. Unknown email and wrong password get the same 401.
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if !bind(s, c, &req) {
		return
	}
	invalid := grc.Unauthenticated("Invalid email or password")
	if req.Email == "" || req.Password == "" {
		recordAuthFailure("login_invalid")
		s.respondError(c, invalid)
		return
	}
	st, err := s.store()
	if err != nil {
		s.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	u, err := st.Users().ByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		recordAuthFailure("login_invalid")
		s.respondError(c, invalid)
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !utils.CheckPasswordHash(req.Password, u.PasswordHash) {
		recordAuthFailure("login_invalid")
		s.respondError(c, invalid)
		return
	}

	now := s.now().UTC()
	if err := st.Users().TouchLogin(ctx, u.ID, now); err != nil {
		s.respondError(c, err)
		return
	}
	u.LastLogin = &now

	resp, err := s.authResponse(u)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Profile handles GET /api/auth/profile for the caller.
func (s *Server) Profile(c *gin.Context) {
	u := currentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"_id":        u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"role":       u.Role,
		"department": u.Department,
		"status":     u.Status,
		"createdAt":  u.CreatedAt,
	})
}

// userDuplicate names the unique field a users insert or update collided on.
func userDuplicate(err error) error {
	var dup *repository.DuplicateError
	if !errors.As(err, &dup) {
		return err
	}
	if strings.Contains(dup.Constraint, "username") {
		return grc.Validation("User with this username already exists")
	}
	return grc.Validation("User with this email already exists")
}
