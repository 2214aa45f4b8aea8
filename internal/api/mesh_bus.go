package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/Armour007/grc-backend/internal/mesh"
	"github.com/Armour007/grc-backend/pkg/logger"
)

// publishChange announces a successful write. Delivery is best effort: a bus error is logged
// and never changes the response.
func (s *Server) publishChange(ctx context.Context, collection string, id uuid.UUID, op mesh.Op, actor uuid.UUID) {
	if s.bus == nil {
		return
	}
	e, err := mesh.NewRecordChanged(mesh.RecordChange{Collection: collection, ID: id, Op: op, Actor: actor})
	if err == nil {
		err = s.bus.Publish(ctx, e)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("collection", collection).Str("id", id.String()).Msg("publish record change failed")
	}
}

// SubscribeRecordChanges logs every record change and counts it in grc_record_mutations_total.
func SubscribeRecordChanges(bus mesh.Bus, log *logger.Logger) (func(), error) {
	l := log.WithComponent("changes")
	return bus.Subscribe(mesh.TopicRecordChanged, func(ctx context.Context, e mesh.Event) {
		c, err := mesh.DecodeRecordChange(e)
		if err != nil {
			l.Warn().Err(err).Msg("malformed record change")
			return
		}
		RecordMutation(c.Collection, string(c.Op))
		l.Info().
			Str("collection", c.Collection).
			Str("id", c.ID.String()).
			Str("op", string(c.Op)).
			Str("actor", c.Actor.String()).
			Time("at", e.Timestamp).
			Msg("record changed")
	})
}
