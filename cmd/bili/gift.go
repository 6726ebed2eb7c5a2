package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	bili "github.com/matcha-bili/bililive"
)

var giftCmd = &cobra.Command{
	Use:   "gift <room-id> <ruid> <gift-name> <gift-num>",
	Short: "Send a gift to a live room (人气票, 喜庆爆竹, 贴贴, 做我的小猫)",
	Args:  cobra.ExactArgs(4),
	RunE:  runGift,
}

func init() {
	rootCmd.AddCommand(giftCmd)
}

func runGift(cmd *cobra.Command, args []string) error {
	roomID, ruid, giftName := args[0], args[1], args[2]
	num, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("parse gift num: %w", err)
	}

	gift, err := bili.GiftByName(giftName)
	if err != nil {
		return err
	}

	client, err := loadClient(tokenFile)
	if err != nil {
		return err
	}

	env, err := client.API().SendGift(context.Background(), roomID, ruid, gift, num)
	if err != nil {
		return fmt.Errorf("送礼物出错: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("送礼物失败: %s", env.Message)
	}
	fmt.Printf("送礼物成功! 送出 %d 个 %s\n", num, giftName)
	return nil
}
