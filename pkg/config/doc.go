// Package config loads the shared YAML endpoint configuration for the
// SLINK command-line tools: addressing, identity files, verification
// policy, protocol logging and keep-alive tuning.
package config
