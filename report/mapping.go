// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package report

// fieldAliases translates per section field ids into the placeholder key
// names the document template expects. Unlisted ids pass through unchanged.
var fieldAliases = map[string]map[string]string{
	"exterior": {
		"platform_plate": "platform",
		"approach":       "approach_road",
	},
	"indicator": {
		"display":  "indicator_display",
		"keyboard": "indicator_keys",
	},
	"jbox": {
		"sealing": "jbox_sealing",
		"wiring":  "jbox_wiring",
	},
	"sensor": {
		"loadcell": "load_cell",
		"ball":     "ball_support",
		"cable":    "sensor_cable",
	},
	"foundation": {
		"concrete": "foundation_concrete",
		"drainage": "foundation_drainage",
	},
	"cleanliness": {
		"platform": "platform_clean",
		"pit":      "pit_clean",
	},
}

// fieldKeyFor maps a template field id to its placeholder key.
func fieldKeyFor(section, fieldID string) string {
	if aliases, ok := fieldAliases[section]; ok {
		if alias, ok := aliases[fieldID]; ok {
			return alias
		}
	}
	return fieldID
}
