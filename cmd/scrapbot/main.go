package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scrapbot.ai/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "scrapbot",
	Short:         "scrapbot - garbage collecting grid robot",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the agent config JSON schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), config.Schema())
		return err
	},
}

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default agent config as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := yaml.Marshal(config.Defaults())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd, replayCmd, watchCmd, schemaCmd, defaultsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "scrapbot:", err)
		os.Exit(1)
	}
}

func component(parent *log.Logger, name string) *log.Logger {
	return log.New(parent.Writer(), "["+name+"] ", parent.Flags())
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
