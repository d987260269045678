package config

import (
	"fmt"
	"os"
)

func Template() string {
	return template
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const template = `# schema definition (.toml, .yaml, .yml or .json), relative to this file
schema = "schema.toml"

# envelope type carrying the rpc "type" and "session" fields
envelope = "package"

# encode buffer starts here and doubles up to max_buffer
initial_buffer = 64
max_buffer = 16777216

max_depth = 64

# trace, debug, info, warn, error
log_level = "info"
`
