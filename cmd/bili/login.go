package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	bili "github.com/matcha-bili/bililive"
)

const loginStateFile = ".bili_login_state"

var loginURLOnly bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in (auto-detects: generates a QR code first, then polls until confirmed)",
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().BoolVarP(&loginURLOnly, "url-only", "u", false, "print the QR code URL only, skip the terminal graphic")
}

type loginState struct {
	URL       string `json:"url"`
	QrcodeKey string `json:"qrcode_key"`
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	hc := &http.Client{Timeout: 15 * time.Second}

	session, err := resumeOrGenerate(ctx, hc)
	if err != nil {
		return fmt.Errorf("generate qr: %w", err)
	}

	cred, _, cookies, err := bili.WaitForLogin(ctx, hc, session)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	_ = os.Remove(loginStateFile)

	fmt.Println("\n登录成功!")
	fmt.Println("用户ID:", cred.UID)

	if err := os.WriteFile(tokenFile, []byte(strings.Join(cookies, "\n")), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	fmt.Println("Cookies 已保存到:", tokenFile)
	return nil
}

func resumeOrGenerate(ctx context.Context, hc *http.Client) (*bili.QRSession, error) {
	if raw, err := os.ReadFile(loginStateFile); err == nil {
		var state loginState
		if err := json.Unmarshal(raw, &state); err == nil && state.QrcodeKey != "" {
			return &bili.QRSession{URL: state.URL, QrcodeKey: state.QrcodeKey}, nil
		}
	}

	session, err := bili.GenerateQR(ctx, hc)
	if err != nil {
		return nil, err
	}

	if loginURLOnly {
		fmt.Println(session.URL)
	} else if err := displayQRCode(session.URL); err != nil {
		fmt.Fprintln(os.Stderr, "render qr:", err)
		fmt.Println(session.URL)
	}

	if raw, err := json.Marshal(loginState{URL: session.URL, QrcodeKey: session.QrcodeKey}); err == nil {
		_ = os.WriteFile(loginStateFile, raw, 0o600)
	}
	return session, nil
}

func displayQRCode(url string) error {
	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return err
	}
	fmt.Println("\n请使用哔哩哔哩手机App扫描以下二维码登录:")
	fmt.Println(qr.ToString(false))
	fmt.Println("二维码链接:", url)
	return nil
}
