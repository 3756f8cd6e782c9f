package am

import (
	"bytes"

	"github.com/BurntSushi/toml"

	"github.com/teranos/dirjobs/errors"
)

// Render encodes the effective configuration as TOML, suitable for am.toml
func Render(cfg *Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", errors.Wrap(err, "failed to encode config as TOML")
	}
	return buf.String(), nil
}
