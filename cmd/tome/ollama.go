package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tome/internal/ollama"
)

var ollamaCmd = &cobra.Command{
	Use:   "ollama",
	Short: "Manage a local Ollama container",
	Long: `Manage a local Ollama container for the ollama provider.

The container publishes the Ollama API on 127.0.0.1 and keeps models in
~/.tome/ollama/, so pulled models survive container removal.

Examples:
  tome ollama start               # Start (or create) the container
  tome ollama pull llama3.1:8b    # Pull a model into it
  tome ollama status              # Check container status
  tome ollama stop                # Stop the container (models preserved)`,
}

var ollamaStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Ollama container",
	Long: `Start the Ollama container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.ValidateExisting(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Starting Ollama...")
		if err := mgr.Start(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start Ollama: %w", err)
		}
		fmt.Printf("Ollama is running at %s\n", mgr.URL())
		return nil
	},
}

var ollamaStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Ollama container",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping Ollama...")
		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop Ollama: %w", err)
		}
		fmt.Println("Ollama stopped")
		return nil
	},
}

var ollamaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Ollama container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case ollama.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())
			if err := ollama.WaitReady(ctx, mgr.URL(), 2*time.Second); err != nil {
				fmt.Printf("Health: unhealthy (%v)\n", err)
			} else {
				fmt.Println("Health: healthy")
			}
		case ollama.StatusStopped:
			fmt.Printf("Status: %s (use 'tome ollama start' to start)\n", status)
		case ollama.StatusNotFound:
			fmt.Printf("Status: %s (use 'tome ollama start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}
		return nil
	},
}

var ollamaLogsTail string

var ollamaLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show Ollama container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(cmd.Context(), ollamaLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}
		fmt.Print(logs)
		return nil
	},
}

var ollamaRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the Ollama container (models are kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing Ollama container...")
		if err := mgr.Remove(cmd.Context()); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}
		fmt.Println("Ollama container removed (models preserved)")
		return nil
	},
}

var ollamaPullCmd = &cobra.Command{
	Use:   "pull <model>",
	Short: "Pull a model into the running container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Printf("Pulling %s...\n", args[0])
		pulled, err := ollama.EnsureModel(cmd.Context(), mgr.URL(), args[0])
		if err != nil {
			return err
		}
		if pulled {
			fmt.Println("Pulled", args[0])
		} else {
			fmt.Println(args[0], "is already present")
		}
		return nil
	},
}

func init() {
	ollamaLogsCmd.Flags().StringVar(&ollamaLogsTail, "tail", "100", "Number of lines to show from the end")

	ollamaCmd.AddCommand(ollamaStartCmd)
	ollamaCmd.AddCommand(ollamaStopCmd)
	ollamaCmd.AddCommand(ollamaStatusCmd)
	ollamaCmd.AddCommand(ollamaLogsCmd)
	ollamaCmd.AddCommand(ollamaRemoveCmd)
	ollamaCmd.AddCommand(ollamaPullCmd)

	rootCmd.AddCommand(ollamaCmd)
}

// getOllamaManager creates a DockerManager from the ollama config section.
func getOllamaManager() (*ollama.DockerManager, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	cm, err := loadConfig(h, newLogger(os.Stderr))
	if err != nil {
		return nil, err
	}
	oc := cm.Get().Ollama
	return ollama.NewDockerManager(ollama.DockerConfig{
		ContainerName: oc.ContainerName,
		Image:         oc.Image,
		HostPort:      oc.Port,
		DataPath:      h.OllamaDataDir(),
	})
}
