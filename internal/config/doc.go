// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads jiyu's configuration.
//
// # Configuration Precedence
//
// Configuration is loaded from (highest precedence first):
//   - Environment variables (JIYU_*)
//   - A .env file in the working directory
//   - ~/.jiyu/config.toml (or the file given with --config)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Storage.DataDir)
//
// Watch reloads the file on change:
//
//	go config.Watch(ctx, path, 0, func(cfg *config.Config, err error) { ... })
package config
