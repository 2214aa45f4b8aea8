package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/mesh"
	"github.com/Armour007/grc-backend/internal/repository"
	"github.com/Armour007/grc-backend/internal/utils"
)

// userView is a user record without its password hash.
type userView struct {
	ID          uuid.UUID  `json:"_id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        grc.Role   `json:"role"`
	Department  string     `json:"department"`
	Status      string     `json:"status"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	Permissions []string   `json:"permissions"`
	timestamps
}

func viewUser(u *database.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		Department:  u.Department,
		Status:      u.Status,
		LastLogin:   u.LastLogin,
		Permissions: nonNil(u.Permissions),
		timestamps:  timestamps{u.CreatedAt, u.UpdatedAt},
	}
}

// userPatch is the body of both the self-service and the admin update. Role and Status are
// ignored on the self-service route.
type userPatch struct {
	Username   *string   `json:"username"`
	Email      *string   `json:"email"`
	Department *string   `json:"department"`
	Password   *string   `json:"password"`
	Role       *grc.Role `json:"role"`
	Status     *string   `json:"status"`
}

// ListUsers handles GET /api/users.
func (s *Server) ListUsers(c *gin.Context) {
	st, err := s.store()
	if err != nil {
		s.respondError(c, err)
		return
	}
	users, err := st.Users().List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]userView, len(users))
	for i := range users {
		out[i] = viewUser(&users[i])
	}
	c.JSON(http.StatusOK, out)
}

// GetUser handles GET /api/users/:id. Callers outside the directory roles may only read
// their own record.
func (s *Server) GetUser(c *gin.Context) {
	_, u, ok := s.loadUser(c)
	if !ok {
		return
	}
	me := currentUser(c)
	if me.ID != u.ID && !grc.Allowed(me.Role, grc.UserDirectoryReaders) {
		s.respondError(c, grc.Forbidden("Not authorized to view this user profile"))
		return
	}
	c.JSON(http.StatusOK, viewUser(u))
}

// UpdateProfile handles PUT /api/users/profile for the caller's own record.
func (s *Server) UpdateProfile(c *gin.Context) {
	var p userPatch
	if !bind(s, c, &p) {
		return
	}
	p.Role, p.Status = nil, nil
	st, err := s.store()
	if err != nil {
		s.respondError(c, err)
		return
	}
	u, err := st.Users().Get(c.Request.Context(), currentUser(c).ID)
	if errors.Is(err, repository.ErrNotFound) {
		err = grc.NotFound("User")
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !s.saveUser(c, st, u, &p) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"_id":        u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"role":       u.Role,
		"department": u.Department,
	})
}

// UpdateUser handles PUT /api/users/:id.
func (s *Server) UpdateUser(c *gin.Context) {
	st, u, ok := s.loadUser(c)
	if !ok {
		return
	}
	var p userPatch
	if !bind(s, c, &p) {
		return
	}
	if !s.saveUser(c, st, u, &p) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"_id":        u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"role":       u.Role,
		"department": u.Department,
		"status":     u.Status,
	})
}

// DeleteUser handles DELETE /api/users/:id. Records that name the user keep the dangling id.
func (s *Server) DeleteUser(c *gin.Context) {
	notFound := grc.NotFound("User")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.respondError(c, notFound)
		return
	}
	st, err := s.store()
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := st.Users().Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = notFound
		}
		s.respondError(c, err)
		return
	}
	s.publishChange(c.Request.Context(), string(grc.Users), id, mesh.OpDelete, currentUser(c).ID)
	c.JSON(http.StatusOK, gin.H{"message": "User removed successfully", "id": id})
}

func (s *Server) loadUser(c *gin.Context) (*repository.Store, *database.User, bool) {
	notFound := grc.NotFound("User")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.respondError(c, notFound)
		return nil, nil, false
	}
	st, err := s.store()
	if err != nil {
		s.respondError(c, err)
		return nil, nil, false
	}
	u, err := st.Users().Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		err = notFound
	}
	if err != nil {
		s.respondError(c, err)
		return nil, nil, false
	}
	return st, u, true
}

// saveUser applies p to u, validates and writes it. Empty strings leave a field unchanged.
func (s *Server) saveUser(c *gin.Context, st *repository.Store, u *database.User, p *userPatch) bool {
	ctx := c.Request.Context()
	if p.Username != nil && strings.TrimSpace(*p.Username) != "" {
		if err := utils.ValidateUsername(*p.Username); err != nil {
			s.respondError(c, err)
			return false
		}
		u.Username = strings.TrimSpace(*p.Username)
	}
	if p.Email != nil && *p.Email != "" {
		email := utils.NormalizeEmail(*p.Email)
		if err := utils.ValidateEmail(email); err != nil {
			s.respondError(c, err)
			return false
		}
		if email != u.Email {
			taken, err := st.Users().EmailTaken(ctx, email)
			if err != nil {
				s.respondError(c, err)
				return false
			}
			if taken {
				s.respondError(c, grc.Validation("User with this email already exists"))
				return false
			}
			u.Email = email
		}
	}
	if p.Department != nil && *p.Department != "" {
		if err := grc.MaxLen("department", *p.Department, 100); err != nil {
			s.respondError(c, err)
			return false
		}
		u.Department = *p.Department
	}
	if p.Role != nil && *p.Role != "" {
		if !p.Role.Valid() {
			s.respondError(c, grc.Validation("Invalid role: %s", *p.Role))
			return false
		}
		u.Role = *p.Role
	}
	if p.Status != nil && *p.Status != "" {
		if err := grc.UserStatus.Check(*p.Status); err != nil {
			s.respondError(c, err)
			return false
		}
		u.Status = *p.Status
	}
	if p.Password != nil && *p.Password != "" {
		if err := utils.ValidatePassword(*p.Password); err != nil {
			s.respondError(c, err)
			return false
		}
		hash, err := utils.HashPassword(*p.Password)
		if err != nil {
			s.respondError(c, err)
			return false
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now().UTC()
	if err := st.Users().Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = grc.NotFound("User")
		}
		s.respondError(c, userDuplicate(err))
		return false
	}
	s.publishChange(ctx, string(grc.Users), u.ID, mesh.OpUpdate, currentUser(c).ID)
	return true
}
