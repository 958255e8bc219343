package clawbox

import (
	_ "embed"
)

// ComposeFile is the docker compose definition for the runtime stack,
// installed into the runtime home directory.
//
//go:embed embedded/docker-compose.yml
var ComposeFile string

// EnvFileTemplate seeds the runtime's .env file on first install.
// {{GATEWAY_PORT}} and {{BROWSER_PORT}} placeholders are filled from the
// global configuration.
//
//go:embed embedded/env.example
var EnvFileTemplate string

// GuideMD is the getting-started guide rendered by `clawbox guide`.
//
//go:embed embedded/GUIDE.md
var GuideMD string
