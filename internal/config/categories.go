package config

// Command categories.
const (
	CategoryMusic          = "music"
	CategoryAdministration = "administration"
	CategoryUtility        = "utility"
)

// CategoryWeights orders categories in help output.
var CategoryWeights = map[string]int{
	CategoryUtility:        0,
	CategoryMusic:          10,
	CategoryAdministration: 20,
}

// CategoryTitles are the headings shown in help output.
var CategoryTitles = map[string]string{
	CategoryUtility:        "📢 Utility",
	CategoryMusic:          "🎵 Music",
	CategoryAdministration: "⚙️ Administration",
}
