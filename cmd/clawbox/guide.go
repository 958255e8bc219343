package main

import (
	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
)

var GuideCommand = Command(guideE,
	"guide",
	"Show the getting-started guide",
)

// guideE renders the embedded guide to the terminal
func guideE(cmd *cobra.Command, args []string) error {
	cmd.Print(clawbox.RenderGuide())
	return nil
}
