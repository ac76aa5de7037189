package core

// Icon is a symbolic icon name. Renderers resolve it against the registry
// below; unknown names collapse to IconTags.
type Icon string

const (
	IconUtensils      Icon = "Utensils"
	IconCar           Icon = "Car"
	IconHome          Icon = "Home"
	IconShoppingBag   Icon = "ShoppingBag"
	IconFileText      Icon = "FileText"
	IconHeartPulse    Icon = "HeartPulse"
	IconTicket        Icon = "Ticket"
	IconBriefcase     Icon = "Briefcase"
	IconGraduationCap Icon = "GraduationCap"
	IconGift          Icon = "Gift"
	IconTrendingUp    Icon = "TrendingUp"
	IconTags          Icon = "Tags"
	IconCoffee        Icon = "Coffee"
	IconPlane         Icon = "Plane"
	IconBus           Icon = "Bus"
	IconFuel          Icon = "Fuel"
	IconPhone         Icon = "Phone"
	IconWifi          Icon = "Wifi"
	IconDumbbell      Icon = "Dumbbell"
	IconPawPrint      Icon = "PawPrint"
	IconBaby          Icon = "Baby"
	IconShirt         Icon = "Shirt"
	IconMusic         Icon = "Music"
	IconBook          Icon = "Book"
	IconLandmark      Icon = "Landmark"
	IconPiggyBank     Icon = "PiggyBank"
	IconWallet        Icon = "Wallet"
	IconReceipt       Icon = "Receipt"
	IconWrench        Icon = "Wrench"
	IconPizza         Icon = "Pizza"

	FallbackIcon = IconTags
)

// glyphs maps each registered icon to the short text glyph used by
// plain-text renderers.
var glyphs = map[Icon]string{
	IconUtensils:      "🍴",
	IconCar:           "🚗",
	IconHome:          "🏠",
	IconShoppingBag:   "🛍",
	IconFileText:      "📄",
	IconHeartPulse:    "❤",
	IconTicket:        "🎟",
	IconBriefcase:     "💼",
	IconGraduationCap: "🎓",
	IconGift:          "🎁",
	IconTrendingUp:    "📈",
	IconTags:          "🏷",
	IconCoffee:        "☕",
	IconPlane:         "✈",
	IconBus:           "🚌",
	IconFuel:          "⛽",
	IconPhone:         "📱",
	IconWifi:          "📶",
	IconDumbbell:      "🏋",
	IconPawPrint:      "🐾",
	IconBaby:          "👶",
	IconShirt:         "👕",
	IconMusic:         "🎵",
	IconBook:          "📚",
	IconLandmark:      "🏛",
	IconPiggyBank:     "🐷",
	IconWallet:        "👛",
	IconReceipt:       "🧾",
	IconWrench:        "🔧",
	IconPizza:         "🍕",
}

// ResolveIcon maps a stored icon name onto the registry.
func ResolveIcon(name string) Icon {
	if _, ok := glyphs[Icon(name)]; ok {
		return Icon(name)
	}
	return FallbackIcon
}

func (i Icon) Known() bool {
	_, ok := glyphs[i]
	return ok
}

// Glyph returns the text glyph for the icon, or the fallback glyph.
func (i Icon) Glyph() string {
	return glyphs[ResolveIcon(string(i))]
}

// RegisteredIcons lists every icon name in the registry.
func RegisteredIcons() []Icon {
	out := make([]Icon, 0, len(glyphs))
	for i := range glyphs {
		out = append(out, i)
	}
	return out
}
