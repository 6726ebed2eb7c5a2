package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share <room-id>",
	Short: "Share a live room",
	Args:  cobra.ExactArgs(1),
	RunE:  runShare,
}

func init() {
	rootCmd.AddCommand(shareCmd)
}

func runShare(cmd *cobra.Command, args []string) error {
	client, err := loadClient(tokenFile)
	if err != nil {
		return err
	}

	env, err := client.API().ShareRoom(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("分享出错: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("分享失败: %s", env.Message)
	}
	fmt.Println("分享成功!")
	return nil
}
