package bili

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	sendDanmakuURL  = "https://api.live.bilibili.com/msg/send"
	likeReportV3URL = "https://api.live.bilibili.com/xlive/app-ucenter/v1/like_info_v3/like/likeReportV3"
	sendGiftURL     = "https://api.live.bilibili.com/xlive/revenue/v1/gift/sendGold"
	shareRoomURL    = "https://api.live.bilibili.com/xlive/web-room/v1/index/TrigerInteract"
	danmuInfoURL    = "https://api.live.bilibili.com/xlive/web-room/v1/index/getDanmuInfo"
	roomPlayInfoURL = "https://api.live.bilibili.com/xlive/web-room/v2/index/getRoomPlayInfo"
	userInfoURL     = "https://api.bilibili.com/x/space/wbi/acc/info"

	// liveStatistics and statistics are opaque bookkeeping blobs the web
	// client sends on every gift purchase. Bilibili's gift endpoint rejects
	// requests missing them; their contents are not documented and are
	// reproduced verbatim from a captured browser session.
	liveStatistics = `{"pc_client":"pcWeb","jumpfrom":"72001","room_category":"0","source_event":0,"official_channel":{"program_room_id":"-99998","program_up_id":"-99998"}}`
	statistics     = `{"platform":5,"pc_client":"pcWeb","appId":100}`
)

// Envelope is the response shape every Bilibili JSON endpoint in this
// package shares: a status code, a human message, and a data payload whose
// type is endpoint-specific.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TTL     int    `json:"ttl"`
	Data    T      `json:"data"`
}

// DanmakuMode controls how a sent danmaku is displayed in the room.
type DanmakuMode int

const (
	DanmakuScroll DanmakuMode = 1
	DanmakuBottom DanmakuMode = 4
	DanmakuTop    DanmakuMode = 5
)

// DanmuInfoResult is the WebSocket connection info returned by
// getDanmuInfo: the auth token and the ordered list of candidate hosts.
type DanmuInfoResult struct {
	BusinessID       int        `json:"business_id"`
	HostList         []LiveHost `json:"host_list"`
	MaxDelay         int        `json:"max_delay"`
	RefreshRate      int        `json:"refresh_rate"`
	RefreshRowFactor float64    `json:"refresh_row_factor"`
	Token            string     `json:"token"`
}

// LiveHost is one candidate WebSocket endpoint for a room's danmaku stream.
type LiveHost struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	WSPort  int    `json:"ws_port"`
	WSSPort int    `json:"wss_port"`
}

// RoomPlayInfo carries a room's live/offline status.
type RoomPlayInfo struct {
	RoomID     uint64 `json:"room_id"`
	UID        uint64 `json:"uid"`
	LiveStatus int    `json:"live_status"` // 0 offline, 1 live, 2 carousel
	IsHidden   bool   `json:"is_hidden"`
	IsLocked   bool   `json:"is_locked"`
}

// LiveRoom is the embedded live-room summary on a UserInfo.
type LiveRoom struct {
	RoomID     uint64 `json:"roomid"`
	Title      string `json:"title"`
	LiveStatus int    `json:"liveStatus"`
	RoomStatus int    `json:"roomStatus"`
}

// UserInfo is a Bilibili account's public profile.
type UserInfo struct {
	MID      uint64    `json:"mid"`
	Name     string    `json:"name"`
	Sex      string    `json:"sex"`
	LiveRoom *LiveRoom `json:"live_room,omitempty"`
}

// APIClient is the authenticated surface for every Bilibili HTTP operation
// this package needs: sending danmaku/gifts/likes/shares, and reading room
// and user info. Every method is safe for concurrent use.
type APIClient struct {
	hc     *http.Client
	cred   *Credential
	jar    *Jar
	signer *Signer

	maxDanmakuLen int
	cooldown      time.Duration
	limiters      sync.Map // roomID int64 -> *rate.Limiter
}

// APIClientOption configures an APIClient.
type APIClientOption func(*APIClient)

// WithMaxDanmakuLength caps how many runes a single SendBarrage call sends
// per request; longer messages are auto-split into consecutive sends.
func WithMaxDanmakuLength(n int) APIClientOption {
	return func(c *APIClient) { c.maxDanmakuLen = n }
}

// WithSendCooldown sets the minimum interval between two sends to the same
// room.
func WithSendCooldown(d time.Duration) APIClientOption {
	return func(c *APIClient) { c.cooldown = d }
}

// NewAPIClient builds an APIClient bound to an authenticated Credential and
// its cookie jar. hc's Jar should be the same jar (or nil for a client that
// only ever reads anonymous endpoints).
func NewAPIClient(hc *http.Client, cred *Credential, jar *Jar, opts ...APIClientOption) *APIClient {
	c := &APIClient{
		hc:            hc,
		cred:          cred,
		jar:           jar,
		maxDanmakuLen: 20,
		cooldown:      5 * time.Second,
	}
	c.signer = NewSigner(hc, jarCookieSource(jar))
	for _, o := range opts {
		o(c)
	}
	return c
}

func jarCookieSource(jar *Jar) cookieSource {
	if jar == nil {
		return nil
	}
	return jar
}

func (c *APIClient) cookieHeader() string {
	if c.jar == nil {
		return ""
	}
	return c.jar.cookieHeader()
}

// SendBarrage posts a danmaku message to roomID, splitting it into
// maxDanmakuLen-rune chunks and waiting out the per-room cooldown between
// each chunk.
func (c *APIClient) SendBarrage(ctx context.Context, roomID int64, msg string, mode DanmakuMode) error {
	for i, chunk := range splitMessage(msg, c.maxDanmakuLen) {
		if err := c.waitCooldown(ctx, roomID); err != nil {
			return err
		}
		env, err := c.sendBarrageOnce(ctx, roomID, chunk, mode)
		if err != nil {
			return fmt.Errorf("bili: send barrage chunk %d: %w", i+1, err)
		}
		if env.Code != 0 {
			return &BusinessError{Code: env.Code, Message: env.Message}
		}
	}
	return nil
}

func (c *APIClient) waitCooldown(ctx context.Context, roomID int64) error {
	v, _ := c.limiters.LoadOrStore(roomID, rate.NewLimiter(rate.Every(c.cooldown), 1))
	return v.(*rate.Limiter).Wait(ctx)
}

func (c *APIClient) sendBarrageOnce(ctx context.Context, roomID int64, msg string, mode DanmakuMode) (*Envelope[json.RawMessage], error) {
	form := url.Values{
		"bubble":     {"0"},
		"msg":        {msg},
		"color":      {"16777215"},
		"mode":       {strconv.Itoa(int(mode))},
		"fontsize":   {"25"},
		"rnd":        {strconv.FormatInt(time.Now().Unix(), 10)},
		"roomid":     {strconv.FormatInt(roomID, 10)},
		"csrf":       {c.cred.CSRF},
		"csrf_token": {c.cred.CSRF},
	}
	return c.postForm(ctx, sendDanmakuURL, form)
}

// LikeReport reports a click-like burst against a room. clickTime is passed
// through unparsed; the upstream API treats it as an opaque string rather
// than a structured value.
func (c *APIClient) LikeReport(ctx context.Context, roomID, anchorID, clickTime string) (*Envelope[json.RawMessage], error) {
	signed, err := c.signer.Sign(ctx, map[string]string{
		"click_time": clickTime,
		"room_id":    roomID,
		"uid":        c.cred.UID,
		"anchor_id":  anchorID,
		"csrf":       c.cred.CSRF,
	})
	if err != nil {
		return nil, err
	}
	return c.postQuery(ctx, likeReportV3URL, signed)
}

// SendGift purchases and sends num units of gift to ruid in roomID.
func (c *APIClient) SendGift(ctx context.Context, roomID, ruid string, gift Gift, num int64) (*Envelope[json.RawMessage], error) {
	signed, err := c.signer.Sign(ctx, map[string]string{
		"uid":             c.cred.UID,
		"gift_id":         strconv.FormatInt(gift.ID, 10),
		"ruid":            ruid,
		"send_ruid":       "0",
		"gift_num":        strconv.FormatInt(num, 10),
		"coin_type":       "gold",
		"bag_id":          "0",
		"platform":        "pc",
		"biz_code":        "Live",
		"biz_id":          roomID,
		"storm_beat_id":   "0",
		"metadata":        "",
		"price":           strconv.FormatInt(gift.Price, 10),
		"receive_users":   "",
		"live_statistics": liveStatistics,
		"statistics":      statistics,
		"csrf":            c.cred.CSRF,
	})
	if err != nil {
		return nil, err
	}
	return c.postQuery(ctx, sendGiftURL, signed)
}

// ShareRoom reports a room share event against roomID.
func (c *APIClient) ShareRoom(ctx context.Context, roomID string) (*Envelope[json.RawMessage], error) {
	form := url.Values{
		"roomid":        {roomID},
		"interact_type": {"3"},
		"uid":           {c.cred.UID},
		"csrf":          {c.cred.CSRF},
		"csrf_token":    {c.cred.CSRF},
		"visit_id":      {""},
	}
	return c.postForm(ctx, shareRoomURL, form)
}

// GetDanmuInfo fetches the WebSocket auth token and host list for roomID.
func (c *APIClient) GetDanmuInfo(ctx context.Context, roomID uint64) (*Envelope[DanmuInfoResult], error) {
	signed, err := c.signer.Sign(ctx, map[string]string{
		"id":   strconv.FormatUint(roomID, 10),
		"type": "0",
	})
	if err != nil {
		return nil, err
	}
	return getJSON[DanmuInfoResult](ctx, c, danmuInfoURL+"?"+signed)
}

// GetRoomPlayInfo fetches a room's live/offline status.
func (c *APIClient) GetRoomPlayInfo(ctx context.Context, roomID uint64) (*Envelope[RoomPlayInfo], error) {
	q := fmt.Sprintf("room_id=%d&protocol=0,1&format=0,1,2&codec=0,1,2&qn=0&platform=web&ptype=8&dolby=5&panorama=1", roomID)
	return getJSON[RoomPlayInfo](ctx, c, roomPlayInfoURL+"?"+q)
}

// GetUserInfo fetches a Bilibili account's public profile.
func (c *APIClient) GetUserInfo(ctx context.Context, mid uint64) (*Envelope[UserInfo], error) {
	signed, err := c.signer.Sign(ctx, map[string]string{
		"platform": "web",
		"mid":      strconv.FormatUint(mid, 10),
	})
	if err != nil {
		return nil, err
	}
	return getJSON[UserInfo](ctx, c, userInfoURL+"?"+signed)
}

func (c *APIClient) postForm(ctx context.Context, rawURL string, form url.Values) (*Envelope[json.RawMessage], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	setCommonHeaders(req, c.cookieHeader())
	return doJSON[json.RawMessage](c.hc, req)
}

func (c *APIClient) postQuery(ctx context.Context, base, signedQuery string) (*Envelope[json.RawMessage], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"?"+signedQuery, nil)
	if err != nil {
		return nil, err
	}
	setCommonHeaders(req, c.cookieHeader())
	return doJSON[json.RawMessage](c.hc, req)
}

func getJSON[T any](ctx context.Context, c *APIClient, rawURL string) (*Envelope[T], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	setCommonHeaders(req, c.cookieHeader())
	return doJSON[T](c.hc, req)
}

// decodeBody decodes an already-issued response's JSON envelope. Split out
// from doJSON so callers that need the raw *http.Response first (to read
// Set-Cookie headers, for instance) can still share the decode path.
func decodeBody[T any](resp *http.Response) (*Envelope[T], error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransport("read response body", err)
	}
	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("bili: decode response: %w", err)
	}
	return &env, nil
}

// doJSON performs the request and decodes the JSON envelope. It is the one
// place every endpoint in this file funnels through, Go's generics standing
// in for the duplicated per-type response handling the original client
// hand-wrote per endpoint.
func doJSON[T any](hc *http.Client, req *http.Request) (*Envelope[T], error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, wrapTransport(req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransport("read response body", err)
	}

	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("bili: decode %s response: %w", req.URL.Path, err)
	}
	return &env, nil
}

// splitMessage breaks msg into chunks of at most maxLen runes.
func splitMessage(msg string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = 20
	}
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(runes) > 0 {
		end := maxLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[:end]))
		runes = runes[end:]
	}
	return chunks
}
