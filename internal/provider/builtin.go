package provider

import "github.com/bnema/embed-consent/internal/models"

// builtins is checked in declaration order after caller-supplied providers.
// generic stays last and never carries rules.
var builtins = []models.Provider{
	{
		ID:   "youtube",
		Name: "YouTube",
		Patterns: []string{
			"youtube.com/embed/",
			"youtube-nocookie.com/embed/",
			"youtu.be/",
		},
	},
	{
		ID:       "vimeo",
		Name:     "Vimeo",
		Patterns: []string{"vimeo.com/video/"},
	},
	{
		ID:       "arte",
		Name:     "ARTE",
		Patterns: []string{"arte.tv/player/"},
	},
	{
		ID:   "dailymotion",
		Name: "Dailymotion",
		Patterns: []string{
			"dailymotion.com/embed/",
			"geo.dailymotion.com/player",
		},
	},
	{
		ID:   "googlemaps",
		Name: "Google Maps",
		Patterns: []string{
			"google.*/maps/embed",
			"maps.google.*output=embed",
		},
	},
	{
		ID:       "openstreetmap",
		Name:     "OpenStreetMap",
		Patterns: []string{"openstreetmap.org/export/embed"},
	},
	{
		ID:       "komoot",
		Name:     "komoot",
		Patterns: []string{"||komoot.*/embed"},
	},
	{
		ID:       "spotify",
		Name:     "Spotify",
		Patterns: []string{"open.spotify.com/embed"},
	},
	{
		ID:       "soundcloud",
		Name:     "SoundCloud",
		Patterns: []string{"w.soundcloud.com/player"},
	},
	{
		ID:   models.GenericProvider,
		Name: "External",
	},
}

// Builtins returns a copy of the built-in provider table in match order
func Builtins() []models.Provider {
	out := make([]models.Provider, len(builtins))
	copy(out, builtins)
	return out
}
