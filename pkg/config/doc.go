// Package config loads process configuration for the sample thingset-*
// commands: listen addresses, the CAN interface name, role-set defaults,
// and persistence paths, from a YAML file, environment variables, or
// flags, with flags taking precedence. Library packages (engine, node,
// registry, codec, server, client) take no dependency on this package —
// it exists only for the cmd/* mains.
package config
