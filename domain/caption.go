package domain

import "strings"

type CaptionPlacement string

const (
	CaptionPlacementTop    CaptionPlacement = "top"
	CaptionPlacementCenter CaptionPlacement = "center"
	CaptionPlacementBottom CaptionPlacement = "bottom"
)

const (
	DefaultTranscriptColor  = "#04f827"
	DefaultTranscriptEffect = "karaoke"
)

// CaptionConfiguration is the user's caption choice for a render.
type CaptionConfiguration struct {
	Enabled          bool             `json:"enabled"`
	PresetID         string           `json:"presetId,omitempty"`
	Placement        CaptionPlacement `json:"placement,omitempty"`
	TranscriptColor  string           `json:"transcriptColor,omitempty"`
	TranscriptEffect string           `json:"transcriptEffect,omitempty"`
}

var captionPlacementY = map[CaptionPlacement]string{
	CaptionPlacementTop:    "10%",
	CaptionPlacementCenter: "50%",
	CaptionPlacementBottom: "90%",
}

var captionEffects = map[string]struct{}{
	"karaoke":   {},
	"highlight": {},
	"fade":      {},
	"bounce":    {},
	"slide":     {},
	"enlarge":   {},
}

var captionConstants = map[string]string{
	"font_family":               "Montserrat",
	"font_weight":               "700",
	"font_size":                 "8 vmin",
	"fill_color":                "#ffffff",
	"stroke_color":              "#333333",
	"stroke_width":              "1.05 vmin",
	"x_alignment":               "50%",
	"background_color":          "rgba(216,216,216,0)",
	"transcript_placement":      "animate",
	"transcript_maximum_length": "25",
}

// CaptionRenderProperties flattens a caption configuration into renderer
// properties. A nil configuration yields the default caption style, a disabled
// one yields an empty map.
func CaptionRenderProperties(cfg *CaptionConfiguration) map[string]string {
	if cfg == nil {
		cfg = &CaptionConfiguration{Enabled: true}
	}
	if !cfg.Enabled {
		return map[string]string{}
	}

	props := make(map[string]string, len(captionConstants)+3)
	for key, value := range captionConstants {
		props[key] = value
	}

	placement := CaptionPlacement(strings.ToLower(strings.TrimSpace(string(cfg.Placement))))
	y, ok := captionPlacementY[placement]
	if !ok {
		y = captionPlacementY[CaptionPlacementBottom]
	}
	props["y_alignment"] = y

	color := strings.TrimSpace(cfg.TranscriptColor)
	if color == "" {
		color = DefaultTranscriptColor
	}
	props["transcript_color"] = color

	effect := strings.ToLower(strings.TrimSpace(cfg.TranscriptEffect))
	if _, ok := captionEffects[effect]; !ok {
		effect = DefaultTranscriptEffect
	}
	props["transcript_effect"] = effect

	return props
}

// CaptionPropertyKeys lists every key an enabled configuration produces.
func CaptionPropertyKeys() []string {
	keys := make([]string, 0, len(captionConstants)+3)
	for key := range captionConstants {
		keys = append(keys, key)
	}
	return append(keys, "y_alignment", "transcript_color", "transcript_effect")
}
