package policy

import (
	"time"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
)

const day = 24 * time.Hour

// DefaultFrequencyDays is used when a policy does not set its own attestation window.
const DefaultFrequencyDays = 365

// Attest records that user acknowledged a policy at now.
//
// If the user already has an attestation younger than frequencyDays, that entry is refreshed
// in place and renewed is true. Otherwise a new entry is appended, so attestations older than
// the window remain as history. The input slice is not modified.
func Attest(list database.Attestations, user uuid.UUID, now time.Time, frequencyDays int) (out database.Attestations, renewed bool) {
	out = append(database.Attestations(nil), list...)
	window := time.Duration(frequencyDays) * day
	for i := range out {
		a := &out[i]
		if a.User != user {
			continue
		}
		if now.Sub(a.AttestedAt) < window {
			a.AttestedAt = now
			a.IsAttested = true
			return out, true
		}
	}
	out = append(out, database.Attestation{User: user, AttestedAt: now, IsAttested: true})
	return out, false
}
