package optimizer

import (
	"fmt"
	"strings"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
	"github.com/devindrajit1998/ai-novaintel/internal/usecase/fusion"
)

// validate rejects malformed input before any work is done.
func validate(r resolved, candidates []domain.Document) error {
	if strings.TrimSpace(r.query) == "" {
		return fmt.Errorf("query is empty: %w", domain.ErrInvalidArgument)
	}
	if err := fusion.ValidateAlpha(r.Alpha); err != nil {
		return err
	}
	if r.TopK < 0 {
		return fmt.Errorf("top_k %d is negative: %w", r.TopK, domain.ErrInvalidArgument)
	}
	if r.MaxExpansions < 0 {
		return fmt.Errorf("max_expansions %d is negative: %w", r.MaxExpansions, domain.ErrInvalidArgument)
	}
	if r.RetrieveK < 0 {
		return fmt.Errorf("retrieve_k %d is negative: %w", r.RetrieveK, domain.ErrInvalidArgument)
	}

	seen := make(map[string]struct{}, len(candidates))
	for i, d := range candidates {
		if d.ID == "" {
			return fmt.Errorf("candidate %d has empty id: %w", i, domain.ErrInvalidArgument)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("duplicate candidate id %q: %w", d.ID, domain.ErrInvalidArgument)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}
