package domain

import "testing"

func TestCaptionRenderPropertiesDisabled(t *testing.T) {
	props := CaptionRenderProperties(&CaptionConfiguration{Enabled: false, Placement: CaptionPlacementTop})
	if props == nil {
		t.Fatal("expected empty map, got nil")
	}
	if len(props) != 0 {
		t.Fatalf("expected no properties for disabled captions, got %v", props)
	}
}

func TestCaptionRenderPropertiesNilUsesDefaults(t *testing.T) {
	props := CaptionRenderProperties(nil)
	assertCompleteCaptionProps(t, props)
	if props["y_alignment"] != "90%" {
		t.Fatalf("expected bottom placement, got %q", props["y_alignment"])
	}
	if props["transcript_color"] != DefaultTranscriptColor {
		t.Fatalf("unexpected color %q", props["transcript_color"])
	}
	if props["transcript_effect"] != DefaultTranscriptEffect {
		t.Fatalf("unexpected effect %q", props["transcript_effect"])
	}
}

func TestCaptionRenderPropertiesTotal(t *testing.T) {
	placements := []CaptionPlacement{CaptionPlacementTop, CaptionPlacementCenter, CaptionPlacementBottom, ""}
	effects := []string{"karaoke", "highlight", "fade", "bounce", "slide", "enlarge", ""}
	wantY := map[CaptionPlacement]string{
		CaptionPlacementTop:    "10%",
		CaptionPlacementCenter: "50%",
		CaptionPlacementBottom: "90%",
		"":                     "90%",
	}

	for _, placement := range placements {
		for _, effect := range effects {
			cfg := &CaptionConfiguration{Enabled: true, Placement: placement, TranscriptEffect: effect}
			props := CaptionRenderProperties(cfg)
			assertCompleteCaptionProps(t, props)
			if props["y_alignment"] != wantY[placement] {
				t.Fatalf("placement %q: got y %q want %q", placement, props["y_alignment"], wantY[placement])
			}
			wantEffect := effect
			if wantEffect == "" {
				wantEffect = DefaultTranscriptEffect
			}
			if props["transcript_effect"] != wantEffect {
				t.Fatalf("effect %q: got %q", effect, props["transcript_effect"])
			}
		}
	}
}

func TestCaptionRenderPropertiesCustomValues(t *testing.T) {
	props := CaptionRenderProperties(&CaptionConfiguration{
		Enabled:          true,
		Placement:        "Center",
		TranscriptColor:  "#ff0000",
		TranscriptEffect: "wobble",
	})
	if props["y_alignment"] != "50%" {
		t.Fatalf("expected case-insensitive placement, got %q", props["y_alignment"])
	}
	if props["transcript_color"] != "#ff0000" {
		t.Fatalf("expected custom color, got %q", props["transcript_color"])
	}
	if props["transcript_effect"] != DefaultTranscriptEffect {
		t.Fatalf("expected unknown effect to fall back, got %q", props["transcript_effect"])
	}
	if props["font_family"] != "Montserrat" || props["transcript_maximum_length"] != "25" {
		t.Fatalf("missing constant styling: %v", props)
	}
}

func assertCompleteCaptionProps(t *testing.T, props map[string]string) {
	t.Helper()
	for _, key := range CaptionPropertyKeys() {
		if props[key] == "" {
			t.Fatalf("missing caption property %q in %v", key, props)
		}
	}
}
