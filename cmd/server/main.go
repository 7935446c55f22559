// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main provides the entrypoint for the mirror server
package main

import "github.com/mindersec/ghmirror/cmd/server/app"

func main() {
	app.Execute()
}
