package colormap

// Named color ramps. viridis is matplotlib's, sampled at ten stops;
// gist_earth and terrain are coarser renditions of their matplotlib
// namesakes, which is plenty under a hillshade.
var ramps = map[string][]string{
	"viridis": {
		"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
		"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
	},
	"viridis_r": {
		"#fde725", "#b5de2b", "#6ece58", "#35b779", "#1f9e89",
		"#26828e", "#31688e", "#3e4989", "#482777", "#440154",
	},
	"gist_earth": {
		"#000000", "#153a6d", "#2f6b6a", "#3e8a5c", "#5ea24e",
		"#94ad60", "#baa77c", "#cdab82", "#e6ccb5", "#fdfbfb",
	},
	"terrain": {
		"#333399", "#0099ff", "#00cc66", "#ffff99",
		"#997c54", "#805c54", "#ffffff",
	},
}

// RampNames lists the ramps a layer config may name, sorted for help output.
func RampNames() []string {
	return []string{"gist_earth", "terrain", "viridis", "viridis_r"}
}
