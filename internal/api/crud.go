package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/mesh"
	"github.com/Armour007/grc-backend/internal/repository"
)

// reqCtx is what the per-entity hooks see of the current request.
type reqCtx struct {
	ctx   context.Context
	store *repository.Store
	actor *database.User
	now   time.Time
}

// resource wires one record type M into the shared CRUD pipeline. C is the create payload and
// U the partial update payload, whose nil fields mean "no change".
type resource[M any, C any, U any] struct {
	kind  grc.Resource
	label string // "Risk" gives "Risk not found" and "Risk removed successfully"
	table func(*repository.Store) repository.Table[M]
	id    func(*M) uuid.UUID

	// create validates the payload and builds the row to insert, with id, timestamps and
	// defaults applied.
	create func(rc *reqCtx, in *C) (*M, []repository.RefCheck, error)
	// update validates the present fields of p and applies them to m, bumping updated_at.
	update func(rc *reqCtx, m *M, p *U) ([]repository.RefCheck, error)
	// refs adds every id m points at to set.
	refs func(m *M, set repository.RefSet)
	// view shapes m for the response, with references replaced by projections.
	view func(m *M, l *repository.Lookup) any
	// duplicate turns a unique violation into the client message; nil uses a generic one.
	duplicate func(m *M, e *repository.DuplicateError) string
}

func (r *resource[M, C, U]) routes(s *Server, g *gin.RouterGroup) {
	perm := grc.Access[r.kind]
	rg := g.Group("/" + string(r.kind))
	rg.GET("", r.list(s))
	rg.GET("/:id", r.get(s))
	rg.POST("", RequireRoles(perm.Create), r.createHandler(s))
	rg.PUT("/:id", RequireRoles(perm.Update), r.updateHandler(s))
	rg.DELETE("/:id", RequireRoles(perm.Delete), r.deleteHandler(s))
}

func (r *resource[M, C, U]) notFound() error { return grc.NotFound(r.label) }

func (r *resource[M, C, U]) list(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := s.store()
		if err != nil {
			s.respondError(c, err)
			return
		}
		rows, err := r.table(st).List(c.Request.Context())
		if err != nil {
			s.respondError(c, err)
			return
		}
		refs := repository.RefSet{}
		for i := range rows {
			r.refs(&rows[i], refs)
		}
		l, err := st.Resolve(c.Request.Context(), refs)
		if err != nil {
			s.respondError(c, err)
			return
		}
		out := make([]any, len(rows))
		for i := range rows {
			out[i] = r.view(&rows[i], l)
		}
		c.JSON(http.StatusOK, out)
	}
}

func (r *resource[M, C, U]) get(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, m, ok := r.load(s, c)
		if !ok {
			return
		}
		r.respond(s, c, st, http.StatusOK, m)
	}
}

func (r *resource[M, C, U]) createHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in C
		if !bind(s, c, &in) {
			return
		}
		st, err := s.store()
		if err != nil {
			s.respondError(c, err)
			return
		}
		rc := s.reqCtx(c, st)
		m, checks, err := r.create(rc, &in)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if err := st.ValidateRefs(rc.ctx, checks...); err != nil {
			r.rejected(err)
			s.respondError(c, err)
			return
		}
		if err := r.table(st).Insert(rc.ctx, m); err != nil {
			s.respondError(c, r.writeErr(m, err))
			return
		}
		s.publishChange(rc.ctx, string(r.kind), r.id(m), mesh.OpCreate, rc.actor.ID)
		r.respond(s, c, st, http.StatusCreated, m)
	}
}

func (r *resource[M, C, U]) updateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, m, ok := r.load(s, c)
		if !ok {
			return
		}
		var p U
		if !bind(s, c, &p) {
			return
		}
		rc := s.reqCtx(c, st)
		checks, err := r.update(rc, m, &p)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if err := st.ValidateRefs(rc.ctx, checks...); err != nil {
			r.rejected(err)
			s.respondError(c, err)
			return
		}
		if err := r.table(st).Update(rc.ctx, m); err != nil {
			s.respondError(c, r.writeErr(m, err))
			return
		}
		s.publishChange(rc.ctx, string(r.kind), r.id(m), mesh.OpUpdate, rc.actor.ID)
		r.respond(s, c, st, http.StatusOK, m)
	}
}

func (r *resource[M, C, U]) deleteHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			s.respondError(c, r.notFound())
			return
		}
		st, err := s.store()
		if err != nil {
			s.respondError(c, err)
			return
		}
		if err := r.table(st).Delete(c.Request.Context(), id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				err = r.notFound()
			}
			s.respondError(c, err)
			return
		}
		s.publishChange(c.Request.Context(), string(r.kind), id, mesh.OpDelete, currentUser(c).ID)
		c.JSON(http.StatusOK, gin.H{"message": r.label + " removed successfully", "id": id})
	}
}

// load fetches the record named by the :id path parameter and writes the 404 itself.
// Ids that are not UUIDs cannot exist, so they are reported as not found too.
func (r *resource[M, C, U]) load(s *Server, c *gin.Context) (*repository.Store, *M, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.respondError(c, r.notFound())
		return nil, nil, false
	}
	st, err := s.store()
	if err != nil {
		s.respondError(c, err)
		return nil, nil, false
	}
	m, err := r.table(st).Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = r.notFound()
		}
		s.respondError(c, err)
		return nil, nil, false
	}
	return st, m, true
}

func (r *resource[M, C, U]) respond(s *Server, c *gin.Context, st *repository.Store, status int, m *M) {
	refs := repository.RefSet{}
	r.refs(m, refs)
	l, err := st.Resolve(c.Request.Context(), refs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(status, r.view(m, l))
}

func (r *resource[M, C, U]) writeErr(m *M, err error) error {
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		if r.duplicate != nil {
			return grc.Validation("%s", r.duplicate(m, dup))
		}
		return grc.Validation("%s with the same unique value already exists", r.label)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return r.notFound()
	}
	return err
}

func (r *resource[M, C, U]) rejected(err error) {
	if grc.IsKind(err, grc.KindValidation) {
		recordRefReject(string(r.kind))
	}
}

func (s *Server) reqCtx(c *gin.Context, st *repository.Store) *reqCtx {
	return &reqCtx{ctx: c.Request.Context(), store: st, actor: currentUser(c), now: s.now().UTC()}
}

// bind decodes the JSON body into dst and writes the 400 itself on failure.
func bind(s *Server, c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var ge *grc.Error
		if errors.As(err, &ge) {
			s.respondError(c, ge)
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		}
		return false
	}
	return true
}

// set copies *v into *dst when the field was present in the payload.
func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// setDate is set for optional request dates stored as nullable columns.
func setDate(dst **time.Time, v *grc.Date) {
	if v != nil {
		*dst = v.Ptr()
	}
}

func ids(v *database.IDs) []uuid.UUID {
	if v == nil {
		return nil
	}
	return *v
}

// timestamps is embedded in every record view.
type timestamps struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
