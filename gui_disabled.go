//go:build !gui

package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var errNoGUI = errors.New("earshot was built without GUI support (rebuild with -tags gui)")

func newGUICmd(_ *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Run the desktop interface (requires -tags gui)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return errNoGUI
		},
	}
}

func runDefaultShell(cmd *cobra.Command, a *appState) error {
	return runTUI(cmd, a)
}
