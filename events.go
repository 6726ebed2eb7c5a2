package bili

import "encoding/json"

// NotificationMsg is the decoded payload of an OpCommand frame. Every cmd
// tag this package models explicitly decodes into its own
// concrete type; any other tag decodes into a RawNotification instead of
// failing, since Bilibili adds new notification tags without notice.
type NotificationMsg interface {
	notificationCmd() string
}

// DanmuMsg is a chat message. Its wire form is a positional JSON array, not
// an object, so it cannot be unmarshalled with struct tags; fields past the
// ones this package reads are ignored, and a missing/short element degrades
// to zero rather than an error.
type DanmuMsg struct {
	UID            uint64
	Uname          string
	GuardLevel     uint32 // 1 governor, 2 admiral, 3 captain
	MedalLevel     uint32
	MedalName      string
	MedalOwnerUID  uint64
	MedalOwnerName string
	Text           string
}

func (*DanmuMsg) notificationCmd() string { return "DANMU_MSG" }

// OneGift is a single (non-combo) gift send.
type OneGift struct {
	GiftID    uint32 `json:"giftId"`
	GiftName  string `json:"giftName"`
	TotalCoin uint32 `json:"total_coin"`
	Num       uint32 `json:"num"`
	UID       uint64 `json:"uid"`
	Uname     string `json:"uname"`
}

func (*OneGift) notificationCmd() string { return "SEND_GIFT" }

// BatchGift is a combo of the same gift sent in quick succession.
type BatchGift struct {
	GiftID         uint32 `json:"gift_id"`
	GiftName       string `json:"gift_name"`
	TotalNum       uint32 `json:"total_num"`
	ComboTotalCoin uint32 `json:"combo_total_coin"`
	UID            uint64 `json:"uid"`
	Uname          string `json:"uname"`
}

func (*BatchGift) notificationCmd() string { return "COMBO_SEND" }

// GuardBuy is a captain/admiral/governor purchase.
type GuardBuy struct {
	GiftID     uint32 `json:"gift_id"`
	GiftName   string `json:"gift_name"`
	GuardLevel uint32 `json:"guard_level"`
	Num        uint32 `json:"num"`
	UID        uint64 `json:"uid"`
	Username   string `json:"username"`
}

func (*GuardBuy) notificationCmd() string { return "GUARD_BUY" }

// EntryEffect fires when a user with a special entrance effect joins.
type EntryEffect struct {
	UID         uint64 `json:"uid"`
	CopyWriting string `json:"copy_writing"`
}

func (*EntryEffect) notificationCmd() string { return "ENTRY_EFFECT" }

// Medal is a fan badge tied to some anchor's room.
type Medal struct {
	AnchorRoomID uint32 `json:"anchor_roomid"`
	GuardLevel   uint32 `json:"guard_level"`
	MedalLevel   uint32 `json:"medal_level"`
	MedalName    string `json:"medal_name"`
}

// Interact is a room-entry/follow/share interaction.
type Interact struct {
	UID       uint64 `json:"uid"`
	Uname     string `json:"uname"`
	FansMedal *Medal `json:"fans_medal"`
	// MsgType: 1 entry, 2 follow, 3 share, 5 mutual follow.
	MsgType uint32 `json:"msg_type"`
}

func (*Interact) notificationCmd() string { return "INTERACT_WORD" }

// OnlineUser is one entry in an online-rank leaderboard.
type OnlineUser struct {
	GuardLevel uint32 `json:"guard_level"`
	Rank       int    `json:"rank"`
	UID        uint64 `json:"uid"`
	Uname      string `json:"uname"`
}

// RankData is the v2 online-rank leaderboard snapshot.
type RankData struct {
	OnlineList []OnlineUser `json:"online_list"`
	RankType   string       `json:"rank_type"`
}

func (*RankData) notificationCmd() string { return "ONLINE_RANK_V2" }

// Preparing fires when a room goes offline.
type Preparing struct {
	RoomID string `json:"roomid"`
}

func (*Preparing) notificationCmd() string { return "PREPARING" }

// Live fires when a room goes live.
type Live struct{}

func (Live) notificationCmd() string { return "LIVE" }

// RawNotification is the fallback for any cmd tag without a concrete type
// above: unknown tags are tolerated, not rejected, and the caller gets the
// unparsed frame body to handle itself.
type RawNotification struct {
	Cmd string
	Raw []byte
}

func (r *RawNotification) notificationCmd() string { return r.Cmd }

type notificationEnvelope struct {
	Cmd string `json:"cmd"`
}

// DecodeNotification parses an OpCommand frame's JSON body into its typed
// notification, falling back to RawNotification for any cmd tag this
// package doesn't model explicitly.
func DecodeNotification(body []byte) (NotificationMsg, error) {
	var env notificationEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrDecodeBody
	}

	switch env.Cmd {
	case "DANMU_MSG":
		var wrapper struct {
			Info json.RawMessage `json:"info"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, ErrDecodeBody
		}
		return decodeDanmuMsg(wrapper.Info)
	case "SEND_GIFT":
		var g OneGift
		if err := decodeData(body, &g); err != nil {
			return nil, err
		}
		return &g, nil
	case "COMBO_SEND":
		var g BatchGift
		if err := decodeData(body, &g); err != nil {
			return nil, err
		}
		return &g, nil
	case "GUARD_BUY":
		var g GuardBuy
		if err := decodeData(body, &g); err != nil {
			return nil, err
		}
		return &g, nil
	case "ENTRY_EFFECT":
		var e EntryEffect
		if err := decodeData(body, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "INTERACT_WORD":
		var i Interact
		if err := decodeData(body, &i); err != nil {
			return nil, err
		}
		return &i, nil
	case "ONLINE_RANK_V2":
		var r RankData
		if err := decodeData(body, &r); err != nil {
			return nil, err
		}
		return &r, nil
	case "PREPARING":
		var p Preparing
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, ErrDecodeBody
		}
		return &p, nil
	case "LIVE":
		return Live{}, nil
	default:
		return &RawNotification{Cmd: env.Cmd, Raw: body}, nil
	}
}

func decodeData(body []byte, out any) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return ErrDecodeBody
	}
	if err := json.Unmarshal(wrapper.Data, out); err != nil {
		return ErrDecodeBody
	}
	return nil
}

// decodeDanmuMsg parses DANMU_MSG's positional info array:
//
//	info[1]  = message text
//	info[2]  = [uid, uname, ...]
//	info[3]  = [medal_level, medal_name, ..., medal_owner_uid] (may be empty)
//	info[7]  = guard_level
//
// Any element shorter than expected degrades its field to zero instead of
// failing the whole parse, matching what real traffic from anonymous or
// no-medal users looks like.
func decodeDanmuMsg(raw json.RawMessage) (*DanmuMsg, error) {
	var info []json.RawMessage
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, ErrDecodeBody
	}

	msg := &DanmuMsg{}
	if len(info) > 1 {
		_ = json.Unmarshal(info[1], &msg.Text)
	}
	if len(info) > 7 {
		_ = json.Unmarshal(info[7], &msg.GuardLevel)
	}

	if len(info) > 2 {
		var user []json.RawMessage
		if json.Unmarshal(info[2], &user) == nil {
			if len(user) > 0 {
				_ = json.Unmarshal(user[0], &msg.UID)
			}
			if len(user) > 1 {
				_ = json.Unmarshal(user[1], &msg.Uname)
			}
		}
	}

	if len(info) > 3 {
		var medal []json.RawMessage
		if json.Unmarshal(info[3], &medal) == nil && len(medal) > 0 {
			_ = json.Unmarshal(medal[0], &msg.MedalLevel)
			if len(medal) > 1 {
				_ = json.Unmarshal(medal[1], &msg.MedalName)
			}
			if len(medal) > 2 {
				_ = json.Unmarshal(medal[2], &msg.MedalOwnerName)
			}
			_ = json.Unmarshal(medal[len(medal)-1], &msg.MedalOwnerUID)
		}
	}

	return msg, nil
}
