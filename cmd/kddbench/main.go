package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/kddbench/config"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

var (
	cfgFile string
	cfg     *config.Config
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "kddbench",
		Short: "Batch evaluation of intrusion detection classifiers",
		Long: `kddbench trains and scores several classifiers on KDD-style intrusion
detection data. Every algorithm runs through the same preprocessing
(normalization, pruning, one-hot encoding, scaling, optional CFS selection
and SMOTE) and is evaluated on the test set, one algorithm at a time.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./kddbench.yaml or $HOME/.config/kddbench/kddbench.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json, console)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go cancelOnSignal(sigChan, cancel, log.GetLogger())

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cancelOnSignal cancels the batch on the first signal. The running algorithm
// stops at its next stage boundary and the remaining ones fail as cancelled.
func cancelOnSignal(sig <-chan os.Signal, cancel context.CancelFunc, logger log.Logger) {
	s, ok := <-sig
	if !ok {
		return
	}
	logger.Info("received interrupt signal, cancelling the batch", "signal", s.String())
	cancel()
}

func initConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	if err := c.Log.Setup(cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	cfg = c
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kddbench %s\n", version)
		},
	}
}
