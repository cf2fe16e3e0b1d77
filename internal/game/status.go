package game

// Status is the server status advertised in an unconnected pong.
type Status struct {
	// Edition is the game edition tag, "MCPE" for Bedrock and "MCEE" for Education Edition.
	Edition string `json:"edition"`

	// Name is the server display name (MOTD first line).
	Name string `json:"name"`

	// WorldName is the level name (MOTD second line), empty if not advertised.
	WorldName string `json:"world_name,omitempty"`

	// Version is the game version string, e.g. "1.18.0".
	Version string `json:"version"`

	// GameMode is the active game mode, e.g. "Survival", empty if not advertised.
	GameMode string `json:"game_mode,omitempty"`

	// Protocol is the network protocol number of the server.
	Protocol int `json:"protocol"`

	// Players is the number of players online.
	Players int `json:"players"`

	// MaxPlayers is the player limit.
	MaxPlayers int `json:"max_players"`
}

// Pong is a decoded unconnected pong datagram.
type Pong struct {
	Status     *Status
	Magic      [16]byte
	PingID     int64
	ServerGUID int64
	ID         byte
}
