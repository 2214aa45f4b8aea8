package risk

// Scores holds the derived severity of a risk.
// Inherent is impact×likelihood before mitigation; Residual is what remains after it.
type Scores struct {
	Inherent int `json:"inherent_score"`
	Residual int `json:"residual_score"`
}

// Score returns impact×likelihood.
func Score(impact, likelihood int) int { return impact * likelihood }

// OnCreate derives scores for a new risk. A non-zero residual supplied by the caller is kept;
// otherwise the residual starts equal to the inherent score.
func OnCreate(impact, likelihood, residual int) Scores {
	inherent := Score(impact, likelihood)
	if residual == 0 {
		residual = inherent
	}
	return Scores{Inherent: inherent, Residual: residual}
}

// Change describes what an update touched. Nil fields were absent from the payload.
type Change struct {
	Impact     *int
	Likelihood *int
	Residual   *int
}

// OnUpdate recomputes scores only when impact or likelihood is part of the update.
// A residual that differs from the previous inherent score was set by hand and survives the
// recomputation, unless the same update supplies a residual explicitly.
// A residual set by hand to exactly the inherent score is indistinguishable from the default and follows it.
func OnUpdate(prev Scores, impact, likelihood int, c Change) Scores {
	next := prev
	if c.Residual != nil {
		next.Residual = *c.Residual
	}
	if c.Impact == nil && c.Likelihood == nil {
		return next
	}
	next.Inherent = Score(impact, likelihood)
	if c.Residual == nil && (prev.Residual == 0 || prev.Residual == prev.Inherent) {
		next.Residual = next.Inherent
	}
	return next
}
