package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	bili "github.com/matcha-bili/bililive"
)

var userCmd = &cobra.Command{
	Use:   "user <mid>",
	Short: "Get a user's profile and live room status",
	Args:  cobra.ExactArgs(1),
	RunE:  runUser,
}

func init() {
	rootCmd.AddCommand(userCmd)
}

func runUser(cmd *cobra.Command, args []string) error {
	mid, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parse mid: %w", err)
	}

	client, err := loadClient(tokenFile)
	if err != nil {
		return err
	}

	env, err := client.API().GetUserInfo(context.Background(), mid)
	if err != nil {
		return fmt.Errorf("获取出错: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("获取失败: %s", env.Message)
	}
	fmt.Println(formatUserInfo(&env.Data))
	return nil
}

func formatUserInfo(info *bili.UserInfo) string {
	status := "无直播间"
	var roomInfo string
	if info.LiveRoom != nil {
		switch info.LiveRoom.LiveStatus {
		case 0:
			status = "未开播"
		case 1:
			status = "直播中"
		case 2:
			status = "轮播中"
		default:
			status = "未知"
		}
		roomInfo = fmt.Sprintf("\n  直播间号: %d\n  直播标题: %s", info.LiveRoom.RoomID, info.LiveRoom.Title)
	}
	return fmt.Sprintf("用户信息:\n  UID: %d\n  昵称: %s\n  性别: %s\n  直播状态: %s%s",
		info.MID, info.Name, info.Sex, status, roomInfo)
}
