// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui centralizes the CLI's terminal output: colored section headers,
// labels, and status lines, with color disabled automatically on a
// non-terminal stdout or explicitly via --no-color.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Red    = color.New(color.FgRed)
	Cyan   = color.New(color.FgCyan)
	Dim    = color.New(color.Faint)
)

// InitColors disables colored output when noColor is set or stdout is not a
// terminal (piped output, CI logs).
func InitColors(noColor bool) {
	if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// Header prints a bold top-level section title.
func Header(title string) {
	bold := color.New(color.Bold)
	bold.Println(title)
}

// SubHeader prints a dimmer sub-section title.
func SubHeader(title string) {
	Dim.Println(title)
}

// Label formats a left-hand field label for "Label: value" lines.
func Label(text string) string {
	return color.New(color.Bold).Sprint(text)
}

// DimText renders s in the muted/faint style.
func DimText(s string) string {
	return Dim.Sprint(s)
}

// CountText renders an integer count in cyan, the convention used for
// result/summary numbers.
func CountText(n int) string {
	return Cyan.Sprint(n)
}

// Success prints a green checkmark-prefixed line.
func Success(msg string) {
	Green.Printf("✓ %s\n", msg)
}

// Successf formats and prints a Success line.
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Info prints a plain informational line.
func Info(msg string) {
	fmt.Println(msg)
}

// Infof formats and prints an Info line.
func Infof(format string, args ...interface{}) {
	Info(fmt.Sprintf(format, args...))
}

// Warning prints a yellow warning line.
func Warning(msg string) {
	Yellow.Printf("⚠ %s\n", msg)
}

// Warningf formats and prints a Warning line.
func Warningf(format string, args ...interface{}) {
	Warning(fmt.Sprintf(format, args...))
}
