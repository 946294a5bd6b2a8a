// Package config loads service configuration from the environment and
// an optional YAML file.
//
// Precedence, lowest to highest: built-in defaults, the YAML file,
// environment variables. A .env file in the working directory is loaded
// into the environment first. String values in the YAML file support
// strict ${VAR} expansion, so credentials stay out of checked-in files.
package config
