// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package place

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var parenthesizedRegex = regexp.MustCompile(`\s*\(.*?\)\s*`)

// Normalize derives the exact-title search string for a place label: the most
// specific comma separated token, without "(...)" annotations and with
// whitespace collapsed. "Cafayate Valley (Calchaquí), Salta, Argentina"
// becomes "Cafayate Valley".
//
// It assumes "locality, region, country" labels and will pick the wrong token
// for labels that don't follow that convention.
func Normalize(label string) string {
	main, _, _ := strings.Cut(norm.NFC.String(label), ",")
	main = parenthesizedRegex.ReplaceAllString(strings.TrimSpace(main), " ")

	return strings.Join(strings.Fields(main), " ")
}

// Country returns the last comma separated token of a label, or "" when the
// label is empty.
func Country(label string) string {
	if strings.TrimSpace(label) == "" {
		return ""
	}

	parts := strings.Split(label, ",")

	return strings.TrimSpace(parts[len(parts)-1])
}
