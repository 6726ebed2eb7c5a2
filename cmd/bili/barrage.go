package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	bili "github.com/matcha-bili/bililive"
)

var barrageCmd = &cobra.Command{
	Use:   "barrage <room-id> <message>",
	Short: "Send a danmaku to a live room",
	Args:  cobra.ExactArgs(2),
	RunE:  runBarrage,
}

func init() {
	rootCmd.AddCommand(barrageCmd)
}

func runBarrage(cmd *cobra.Command, args []string) error {
	roomID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parse room id: %w", err)
	}

	client, err := loadClient(tokenFile)
	if err != nil {
		return err
	}

	if err := client.API().SendBarrage(context.Background(), roomID, args[1], bili.DanmakuScroll); err != nil {
		return fmt.Errorf("发送失败: %w", err)
	}
	fmt.Println("弹幕发送成功!")
	return nil
}
