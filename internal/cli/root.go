// Package cli defines the llm-bridge command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped by the build.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "llm-bridge",
	Short: "Multi-protocol LLM API gateway",
	Long: `llm-bridge translates between LLM provider dialects: OpenAI Chat,
OpenAI Responses, Anthropic, Gemini, Antigravity and AI-SDK clients can
all talk to any configured upstream through one endpoint.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(c *cobra.Command, args []string) {
		fmt.Println("llm-bridge " + Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
