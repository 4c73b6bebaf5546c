package allocation

import (
	"github.com/stackmotive/stackmotive/internal/domain/entities"
)

const fullCircle = 360.0

// layoutSegments assigns contiguous arcs in list order starting at 0°. The last
// non-empty arc is closed at exactly 360° so rounding never leaves a gap.
func layoutSegments(classes []entities.AssetClassAllocation, cfg entities.RingConfiguration) {
	defaults := entities.DefaultColorScheme()

	lastNonEmpty := -1
	for i := range classes {
		if classes[i].CurrentPercentage > 0 {
			lastNonEmpty = i
		}
	}

	cursor := 0.0
	for i := range classes {
		ac := &classes[i]
		angle := ac.CurrentPercentage / 100 * fullCircle
		end := cursor + angle
		if i == lastNonEmpty {
			end = fullCircle
			angle = end - cursor
		}

		ac.Segment = entities.RingSegment{
			StartAngle:  cursor,
			EndAngle:    end,
			Angle:       angle,
			InnerRadius: cfg.InnerRadius,
			OuterRadius: cfg.Radius,
			Color:       segmentColor(ac.Category, cfg.ColorScheme, defaults),
		}
		cursor = end
	}
}

func segmentColor(category entities.AssetClassCategory, scheme, defaults map[entities.AssetClassCategory]string) string {
	if c, ok := scheme[category]; ok && c != "" {
		return c
	}
	if c, ok := defaults[category]; ok {
		return c
	}
	return defaults[entities.AssetClassOther]
}
