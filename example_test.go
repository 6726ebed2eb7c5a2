package bili_test

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	bili "github.com/matcha-bili/bililive"
)

func Example_subscribe() {
	client := bili.NewClient()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	messages := client.Subscribe(ctx, 21452505, 5)
	for msg := range messages {
		switch n := msg.Notification.(type) {
		case *bili.DanmuMsg:
			fmt.Printf("%s: %s\n", n.Uname, n.Text)
		case *bili.OneGift:
			fmt.Printf("%s sent %s x%d\n", n.Uname, n.GiftName, n.Num)
		}
	}
}

func Example_multiRoom() {
	client := bili.NewClient()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rooms := []int64{510, 21452505}
	merged := make(chan bili.ServerMessage)
	for _, room := range rooms {
		go func(room int64) {
			for msg := range client.Subscribe(ctx, room, 5) {
				merged <- msg
			}
		}(room)
	}

	for msg := range merged {
		if d, ok := msg.Notification.(*bili.DanmuMsg); ok {
			fmt.Printf("%s: %s\n", d.Uname, d.Text)
		}
	}
}

func Example_authenticated() {
	cred, jar, err := bili.FromRawCookies([]string{
		"SESSDATA=your_sessdata",
		"bili_jct=your_csrf",
		"DedeUserID=your_uid",
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	client := bili.NewClient(bili.WithCredential(cred, jar))

	ctx := context.Background()
	if err := client.API().SendBarrage(ctx, 510, "hello from bili", bili.DanmakuScroll); err != nil {
		fmt.Println("error:", err)
	}
}

func Example_login() {
	client := bili.NewClient()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, results, err := client.RequestLogin(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("scan:", session.URL)

	result := <-results
	if result.Err != nil {
		fmt.Println("login failed:", result.Err)
		return
	}
	client.Authenticate(result.Credential, result.Jar)
}
