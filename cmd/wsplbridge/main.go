package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "wsplbridge",
		Short: "Legacy WhatsApp client bridge over a Matrix backend",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification gateway and the REST facade",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
