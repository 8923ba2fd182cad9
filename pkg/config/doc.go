// Package config loads console configuration from environment variables.
//
// Every variable carries the CONSOLE_ prefix. Validation covers what must
// be consistent at startup; settings only needed by optional subsystems,
// such as the OIDC client credentials, are validated by those subsystems
// at the point of use.
package config
