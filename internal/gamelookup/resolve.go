package gamelookup

import (
	"context"
	"strings"

	"github.com/iliyamo/review-channels/internal/model"
)

// Kind tags the outcome of a name resolution.
type Kind int

const (
	// NotFound means the search produced no candidate.
	NotFound Kind = iota
	// Resolved means exactly one game was selected.
	Resolved
	// Ambiguous means several candidates matched and the caller did not
	// ask for the first one.
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Resolution is the tagged result of Resolve.  Game is set for Resolved;
// Candidates is set for Ambiguous.
type Resolution struct {
	Kind       Kind
	Game       model.Game
	Candidates []model.Game
}

// Searcher is the part of Client that Resolve needs.
type Searcher interface {
	Search(ctx context.Context, name string) ([]model.Game, error)
}

// Resolve turns a free-text game name into a single game.  With first set,
// the most relevant candidate wins whenever there is more than one.
func Resolve(ctx context.Context, s Searcher, name string, first bool) (Resolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Resolution{Kind: NotFound}, nil
	}
	games, err := s.Search(ctx, name)
	if err != nil {
		return Resolution{}, err
	}
	switch {
	case len(games) == 0:
		return Resolution{Kind: NotFound}, nil
	case len(games) == 1 || first:
		return Resolution{Kind: Resolved, Game: games[0]}, nil
	default:
		return Resolution{Kind: Ambiguous, Candidates: games}, nil
	}
}
