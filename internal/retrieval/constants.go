package retrieval

// Distance bands over pgvector cosine distance (0 = identical, 2 = opposed).
const (
	// PrimaryBandDistance bounds the high-confidence band: hits closer than
	// this are accepted outright.
	PrimaryBandDistance = 1.0

	// EscalationDistance is the plausibility bound. When a department-scoped
	// search yields nothing closer than this, the filter is presumed to have
	// caused under-retrieval and the search re-runs unfiltered.
	EscalationDistance = 1.5
)

// MinResults is the floor: when anything plausible exists, at least this
// many passages are returned by backfilling past the primary band.
const MinResults = 3
