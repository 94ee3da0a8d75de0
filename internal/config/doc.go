// Package config handles configuration loading for portalbot.
//
// Configuration is loaded from YAML files with ${VAR_NAME} environment
// variable expansion and duration-string parsing. Load applies defaults
// for the optional crawler, chat, and index settings and validates the
// required fields (server.http_addr, database.path).
//
// Default config locations (in order):
//
//  1. Path from PORTALBOT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/portalbot/portalbot.yaml
//  3. ~/.config/portalbot/portalbot.yaml
package config
