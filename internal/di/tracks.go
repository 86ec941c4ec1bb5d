package di

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/requestmirror/internal/config"
	"github.com/aristath/requestmirror/internal/domain"
	"github.com/rs/zerolog"
)

// ResolveTracks returns the tracks to mirror: the configured list, or every
// track the source reports when none is configured. Slugs are lowercased,
// deduplicated and sorted.
func ResolveTracks(ctx context.Context, cfg *config.Config, source domain.SourceClient, log zerolog.Logger) ([]string, error) {
	var slugs []string
	if len(cfg.Tracks) > 0 {
		slugs = cfg.Tracks
	} else {
		infos, err := source.ListTracks(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to discover tracks: %w", err)
		}
		for _, info := range infos {
			slugs = append(slugs, info.Slug)
		}
	}

	seen := make(map[string]bool, len(slugs))
	out := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		slug = strings.ToLower(strings.TrimSpace(slug))
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, slug)
	}
	sort.Strings(out)

	if len(out) == 0 {
		return nil, fmt.Errorf("no tracks to mirror")
	}

	log.Info().Int("tracks", len(out)).Bool("configured", len(cfg.Tracks) > 0).Msg("Tracks resolved")
	return out, nil
}
