// Package security groups credential handling. See the secrets
// subpackage for ${secret:name} references in configuration.
package security
