// Package assets provides access to embedded static files such as the example settings file.
package assets

import "embed"

// ExampleSettings is the name of the embedded example TOML settings file.
const ExampleSettings = "settings.example.toml"

//go:embed settings.example.toml
var embedFS embed.FS

// ReadFile returns the content of a specific file from the embedded assets by its name.
func ReadFile(name string) ([]byte, error) {
	return embedFS.ReadFile(name)
}

