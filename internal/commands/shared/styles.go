// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package shared

import (
	"github.com/charmbracelet/lipgloss"
)

// CLI styles
var (
	StatusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	StatusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	StatusInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // blue
	Muted       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	Bold        = lipgloss.NewStyle().Bold(true)
	Header      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// Symbols for status indicators
const (
	SymbolOK    = "✓"
	SymbolError = "✗"
	SymbolSkip  = "-"
)

// RenderOK renders a success message with a green checkmark.
func RenderOK(msg string) string {
	return StatusOK.Render(SymbolOK) + " " + msg
}

// RenderError renders an error message with a red cross.
func RenderError(msg string) string {
	return StatusError.Render(SymbolError) + " " + msg
}

// RenderSkipped renders a muted line for something that did not run.
func RenderSkipped(msg string) string {
	return Muted.Render(SymbolSkip + " " + msg)
}

// RenderVerdict renders PASS or FAIL.
func RenderVerdict(ok bool) string {
	if ok {
		return StatusOK.Bold(true).Render("PASS")
	}
	return StatusError.Bold(true).Render("FAIL")
}

// RenderPhase colours a session phase name: suspended sessions are blue,
// running and stepping ones orange, terminated ones gray.
func RenderPhase(phase string) string {
	switch phase {
	case "suspended":
		return StatusInfo.Render(phase)
	case "running", "stepping":
		return StatusWarn.Render(phase)
	default:
		return Muted.Render(phase)
	}
}

// RenderLabel renders a dim label for key: value pairs.
func RenderLabel(label string) string {
	return Muted.Render(label)
}
