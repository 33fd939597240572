package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/log"
)

// Version information (set via ldflags during build).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ago",
	Short: "ago runs and supervises a network of autonomous LLM agent instances",
	Long: `ago is a single-binary daemon and CLI for spawning, messaging, and
supervising autonomous agent instances built from named templates.

The same binary plays three roles: the "ago daemon start" command runs the
long-lived control-socket daemon; every other "ago <verb>" invocation is a
client dialing that daemon's socket; and an invocation carrying
--instance-id (never typed by a human — pkg/process.Manager spawns it)
runs as one instance's own worker process.`,
	Version: Version,
	RunE:    runAsWorkerIfRequested,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ago version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("base-dir", "", "ago base directory (default $HOME/.ago)")

	// Flags only ever set by pkg/process.Manager.Spawn when it execs this
	// same binary as a worker — never documented to interactive users.
	rootCmd.Flags().String("instance-id", "", "")
	rootCmd.Flags().String("socket", "", "")
	rootCmd.Flags().String("log-file", "", "")
	rootCmd.Flags().String("config-dir", "", "")
	_ = rootCmd.Flags().MarkHidden("instance-id")
	_ = rootCmd.Flags().MarkHidden("socket")
	_ = rootCmd.Flags().MarkHidden("log-file")
	_ = rootCmd.Flags().MarkHidden("config-dir")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(queuesCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(daemonCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// runAsWorkerIfRequested is rootCmd's own RunE: if --instance-id is set,
// this process of the ago binary IS the worker pkg/process.Manager just
// spawned, and it runs the agent runtime instead of printing help.
func runAsWorkerIfRequested(cmd *cobra.Command, args []string) error {
	instanceID, _ := cmd.Flags().GetString("instance-id")
	if instanceID == "" {
		return cmd.Help()
	}
	socketPath, _ := cmd.Flags().GetString("socket")
	logFile, _ := cmd.Flags().GetString("log-file")
	configDir, _ := cmd.Flags().GetString("config-dir")
	return runWorker(instanceID, socketPath, logFile, configDir)
}
