//go:build gui

package main

import (
	"github.com/spf13/cobra"

	"earshot/app"
	"earshot/gui"
	"earshot/log"
)

func newGUICmd(a *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Run the desktop interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGUI(cmd, a)
		},
	}
}

func runDefaultShell(cmd *cobra.Command, a *appState) error {
	return runGUI(cmd, a)
}

// runGUI must be called on the main goroutine.
func runGUI(_ *cobra.Command, a *appState) error {
	p, _, err := a.newPipeline("gui")
	if err != nil {
		return err
	}
	player := a.newPlayer()
	defer player.Stop()

	runs, err := gui.Run(gui.Options{
		Controller: app.NewController(p),
		Player:     player,
		Settings:   settingsFromConfig(a.cfg),
		Copy:       a.copyText,
		Version:    version,
	})
	log.SessionEnd(runs)
	return err
}
