// Package config provides configuration management for branchclock.
//
// Configuration is loaded from a YAML file, completed with defaults and then
// overridden by environment variables. The result is validated as a whole and
// every failing field is reported together.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("branchclock.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("branchclock.yaml")
//	cfg, err := config.LoadConfigOrDefaults("branchclock.yaml") // file optional
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention BRANCHCLOCK_SECTION_FIELD:
//
//   - BRANCHCLOCK_JIRA_API_TOKEN overrides jira.api_token
//   - BRANCHCLOCK_PRODUCTIVE_ORGANIZATION_ID overrides productive.organization_id
//   - BRANCHCLOCK_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Credentials are normally supplied this way rather than written to disk.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Credential fields may instead hold ${secret:name} references, which the
// secrets package resolves after loading.
//
// The loaded *Config is passed explicitly to every component that needs it.
package config
