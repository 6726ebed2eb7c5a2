package bili

// Gift is a catalog entry accepted by APIClient.SendGift. The catalog is
// fixed: Bilibili's gift IDs and gold-coin prices are assigned server-side
// and do not vary per room.
type Gift struct {
	Name  string
	ID    int64
	Price int64
}

var (
	GiftPopularityTicket = Gift{Name: "人气票", ID: 33988, Price: 100}
	GiftFirecracker      = Gift{Name: "喜庆爆竹", ID: 31569, Price: 100}
	GiftStickers         = Gift{Name: "贴贴", ID: 35430, Price: 1000}
	GiftLittleCat        = Gift{Name: "做我的小猫", ID: 34296, Price: 9900}
)

var giftCatalog = map[string]Gift{
	GiftPopularityTicket.Name: GiftPopularityTicket,
	GiftFirecracker.Name:      GiftFirecracker,
	GiftStickers.Name:         GiftStickers,
	GiftLittleCat.Name:        GiftLittleCat,
}

// GiftByName looks up a catalog gift by its display name. It returns
// UnknownGiftError for any name outside the fixed catalog.
func GiftByName(name string) (Gift, error) {
	g, ok := giftCatalog[name]
	if !ok {
		known := make([]string, 0, len(giftCatalog))
		for k := range giftCatalog {
			known = append(known, k)
		}
		return Gift{}, &UnknownGiftError{Name: name, Known: known}
	}
	return g, nil
}
