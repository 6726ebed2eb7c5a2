package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var likeCmd = &cobra.Command{
	Use:   "like <room-id> <anchor-id> <click-count>",
	Short: "Like a live room",
	Args:  cobra.ExactArgs(3),
	RunE:  runLike,
}

func init() {
	rootCmd.AddCommand(likeCmd)
}

func runLike(cmd *cobra.Command, args []string) error {
	client, err := loadClient(tokenFile)
	if err != nil {
		return err
	}

	env, err := client.API().LikeReport(context.Background(), args[0], args[1], args[2])
	if err != nil {
		return fmt.Errorf("点赞出错: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("点赞失败: %s", env.Message)
	}
	fmt.Println("点赞成功!")
	return nil
}
