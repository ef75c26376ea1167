// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jcodagnone/terroir/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
