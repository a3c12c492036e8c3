// Package file stores user-editable configuration next to the memory:
// config.toml for settings and a prompts/ directory whose templates
// override the built-in ones.
package file
