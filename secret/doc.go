// Package secret expands credential references in configuration values.
//
// Connection settings such as the durable tier password are written as
// ${VAR} references in dashops.yaml and resolved from the environment at
// load time, so credentials never live in the config file itself. A missing
// referenced variable is a hard error rather than a silent empty string.
package secret
