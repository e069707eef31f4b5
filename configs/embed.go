// Package configs provides the embedded configuration templates written by
// `reportrag config init`.
//
// Templates are embedded at build time so binary releases carry them.
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (config.NewConfig())
//  2. User config (~/.config/reportrag/config.yaml)
//  3. Project config (.reportrag.yaml)
//  4. .env in the project directory
//  5. Environment variables (REPORTRAG_*)
package configs

import _ "embed"

// UserConfigTemplate is the template for machine-level configuration.
// Created by: `reportrag config init --user` at ~/.config/reportrag/config.yaml
// Contains: API endpoints and models shared by every report collection.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created by: `reportrag config init` at .reportrag.yaml in the project directory
// Contains: document paths, retrieval quotas and batching.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
