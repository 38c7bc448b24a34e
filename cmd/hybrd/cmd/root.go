// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmd wires the hybrd command-line benchmark harness: cobra
// for subcommands, pflag for flags, viper for optional config-file
// overrides, and logrus for operational logging. None of this feeds
// back into the solver package, which has no notion of a CLI.
package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the root Cobra command; every subcommand is registered here.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hybrd",
		Short: "hybrd runs Powell's hybrid method against nonlinear equation systems",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			log.SetOutput(os.Stdout)
		},
	}
	root.AddCommand(solveCmd())
	return root
}

// Execute runs the root command, returning any error it reports.
func Execute() error {
	return RootCmd().Execute()
}
