// Package config provides configuration management for testctl.
//
// Configuration is loaded and merged in the following order, with later
// sources overriding earlier ones:
//
//  1. Default configuration (GetDefaultConfig)
//  2. User configuration (~/.config/testctl/config.yaml)
//  3. Project configuration (./.testctl/config.yaml)
//  4. An explicit file passed with --config
//  5. A .env file in the working directory (does not override set variables)
//  6. Environment variables named after the dotted key in UPPER_SNAKE form
//
// Example:
//
//	mcp:
//	  max_retries: 3
//	  retry_interval_seconds: 2
//	api:
//	  base_url: https://staging.example.com
//	router:
//	  workers: 8
//	  ui_keywords: [click, navigate]
//	ui:
//	  provider: mcp
//	  mcp_command: npx
//	  mcp_args: ["@playwright/mcp"]
//
// Slices are overridden from the environment as comma-separated values,
// for example ROUTER_SQL_KEYWORDS="select,table".
package config
