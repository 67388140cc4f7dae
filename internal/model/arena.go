package model

// Arena is a logical grouping of source platforms.
type Arena string

const (
	ArenaSocialMedia Arena = "social_media"
	ArenaNews        Arena = "news"
	ArenaWebArchives Arena = "web_archives"
	ArenaBacklinks   Arena = "backlinks"
)

// Tier is the service level for a platform, determining cost and capability.
type Tier string

const (
	TierFree    Tier = "free"
	TierMedium  Tier = "medium"
	TierPremium Tier = "premium"
)

// arenaPlatforms maps each arena to the platforms it groups. The adapter
// layer owns the full registry; this subset is what the control plane
// validates against for display and estimation.
var arenaPlatforms = map[Arena][]string{
	ArenaSocialMedia: {"reddit", "bluesky", "telegram", "youtube", "tiktok"},
	ArenaNews:        {"gdelt", "mediacloud", "eventregistry"},
	ArenaWebArchives: {"wayback", "commoncrawl"},
	ArenaBacklinks:   {"majestic", "openpagerank"},
}

// PlatformsFor returns the known platforms grouped under an arena.
func PlatformsFor(arena Arena) []string {
	return arenaPlatforms[arena]
}

// ArenaOf returns the arena a platform belongs to, or "" if unknown.
func ArenaOf(platform string) Arena {
	for arena, platforms := range arenaPlatforms {
		for _, p := range platforms {
			if p == platform {
				return arena
			}
		}
	}
	return ""
}
