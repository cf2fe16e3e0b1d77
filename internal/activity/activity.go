// Package activity renders the presence text shown for a server status.
package activity

import (
	"strconv"
	"strings"

	"github.com/woozymasta/bedrock-status/internal/game"
)

// DefaultGameMode replaces $GameMode$ when the server did not advertise one.
const DefaultGameMode = "Unknown"

// Placeholders understood by Render.
const (
	PlaceholderServerName     = "$ServerName$"
	PlaceholderVersion        = "$Version$"
	PlaceholderPlayerCount    = "$PlayerCount$"
	PlaceholderMaxPlayerCount = "$MaxPlayerCount$"
	PlaceholderGameMode       = "$GameMode$"
	PlaceholderWorldName      = "$WorldName$"
	PlaceholderEdition        = "$Edition$"
	PlaceholderCountry        = "$Country$"
)

// Values holds the substitutions for one rendering.
type Values struct {
	ServerName     string
	Version        string
	GameMode       string
	WorldName      string
	Edition        string
	Country        string
	PlayerCount    int
	MaxPlayerCount int
}

// ValuesFrom collects the values of a server status.
func ValuesFrom(s *game.Status) Values {
	return Values{
		ServerName:     s.Name,
		Version:        s.Version,
		GameMode:       s.GameMode,
		WorldName:      s.WorldName,
		Edition:        s.Edition,
		PlayerCount:    s.Players,
		MaxPlayerCount: s.MaxPlayers,
	}
}

// Render replaces every placeholder occurrence in tmpl with its value.
// Unknown $...$ tokens are left untouched.
func Render(tmpl string, v Values) string {
	gameMode := v.GameMode
	if gameMode == "" {
		gameMode = DefaultGameMode
	}

	r := strings.NewReplacer(
		PlaceholderServerName, v.ServerName,
		PlaceholderVersion, v.Version,
		PlaceholderPlayerCount, strconv.Itoa(v.PlayerCount),
		PlaceholderMaxPlayerCount, strconv.Itoa(v.MaxPlayerCount),
		PlaceholderGameMode, gameMode,
		PlaceholderWorldName, v.WorldName,
		PlaceholderEdition, v.Edition,
		PlaceholderCountry, v.Country,
	)

	return r.Replace(tmpl)
}
