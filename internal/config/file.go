package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// File is the TOML settings file.
type File struct {
	Token          string `toml:"token"`
	ServerAddress  string `toml:"server_address"`
	OnlineMessage  string `toml:"online_message"`
	OfflineMessage string `toml:"offline_message"`
	ServerPort     int    `toml:"server_port"`
}

// LoadFile decodes the settings file at path. Unknown keys are an error.
func LoadFile(path string) (*File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("read settings %s: unknown key %q", path, undecoded[0].String())
	}

	return &f, nil
}
