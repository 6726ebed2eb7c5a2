package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var tokenFile string

var rootCmd = &cobra.Command{
	Use:   "bili",
	Short: "Bilibili live-room command line tool",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	defaultTokenFile := "token"
	if env := os.Getenv("BILI_TOKEN_FILE"); env != "" {
		defaultTokenFile = env
	}
	rootCmd.PersistentFlags().StringVarP(&tokenFile, "token-file", "t", defaultTokenFile, "cookie token file (env BILI_TOKEN_FILE)")
}
