package repository

import (
	"github.com/yourusername/matchedge/internal/database"
)

// Repositories holds all repository instances
type Repositories struct {
	Outcome  OutcomeRepository
	Artifact ArtifactRepository
	Match    MatchRepository
}

// NewRepositories creates all repositories with the given database connection
func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Outcome:  NewPostgresOutcomeRepository(db),
		Artifact: NewPostgresArtifactRepository(db),
		Match:    NewPostgresMatchRepository(db),
	}
}
