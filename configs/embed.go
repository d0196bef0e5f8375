// Package configs embeds the commented configuration templates written by
// `smarthr config init`.
//
// Layering (see internal/config Load):
//  1. Hardcoded defaults (config.NewConfig)
//  2. User config (~/.config/smarthr/config.yaml)
//  3. Project config (.smarthr.yaml)
//  4. Environment variables (SMARTHR_*, OPENAI_API_KEY, TOP_K, USE_DENSE, ...)
//
// Every value in the templates equals the hardcoded default, so writing a
// template never changes behavior until it is edited.
package configs

import _ "embed"

// UserConfigTemplate holds machine-level settings: embedding providers,
// hosts and logging. Written by `smarthr config init --user`.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate holds per-corpus settings: data paths, fusion
// weights, chunking and answer style. Written by `smarthr config init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
