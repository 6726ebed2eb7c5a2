package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	bili "github.com/matcha-bili/bililive"
)

var roomCmd = &cobra.Command{
	Use:   "room <room-id>",
	Short: "Get a live room's status",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoom,
}

func init() {
	rootCmd.AddCommand(roomCmd)
}

func runRoom(cmd *cobra.Command, args []string) error {
	roomID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parse room id: %w", err)
	}

	client, err := loadClient(tokenFile)
	if err != nil {
		return err
	}

	env, err := client.API().GetRoomPlayInfo(context.Background(), roomID)
	if err != nil {
		return fmt.Errorf("获取出错: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("获取失败: %s", env.Message)
	}
	fmt.Println(formatRoomInfo(&env.Data))
	return nil
}

func formatRoomInfo(info *bili.RoomPlayInfo) string {
	status := "未知"
	switch info.LiveStatus {
	case 0:
		status = "未开播"
	case 1:
		status = "直播中"
	case 2:
		status = "轮播中"
	}
	return fmt.Sprintf("直播间信息:\n  房间号: %d\n  主播UID: %d\n  状态: %s\n  隐藏: %v\n  锁定: %v",
		info.RoomID, info.UID, status, info.IsHidden, info.IsLocked)
}
