package server

import (
	"math/rand/v2"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// teamPalette is the fixed set of claimable team colors.
var teamPalette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#008080",
	"#9a6324", "#800000", "#808000", "#000075",
}

func init() {
	for _, c := range teamPalette {
		if _, err := colorful.Hex(c); err != nil {
			panic("invalid palette color " + c)
		}
	}
}

func validColor(color string) bool {
	for _, c := range teamPalette {
		if strings.EqualFold(c, color) {
			return true
		}
	}
	return false
}

// pickFreeColor returns the unused palette color farthest (in Lab space) from
// the colors already in use, so randomized teams stay visually distinct. With
// nothing in use, or everything in use, it falls back to a random pick.
func pickFreeColor(used []string) string {
	free := make([]string, 0, len(teamPalette))
	for _, c := range teamPalette {
		taken := false
		for _, u := range used {
			if strings.EqualFold(c, u) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		return teamPalette[rand.IntN(len(teamPalette))]
	}
	if len(used) == 0 {
		return free[rand.IntN(len(free))]
	}

	usedLab := make([]colorful.Color, 0, len(used))
	for _, u := range used {
		if c, err := colorful.Hex(strings.ToLower(u)); err == nil {
			usedLab = append(usedLab, c)
		}
	}
	if len(usedLab) == 0 {
		return free[rand.IntN(len(free))]
	}

	best, bestDist := free[0], -1.0
	for _, f := range free {
		c, err := colorful.Hex(f)
		if err != nil {
			continue
		}
		minDist := -1.0
		for _, u := range usedLab {
			d := c.DistanceLab(u)
			if minDist < 0 || d < minDist {
				minDist = d
			}
		}
		if minDist > bestDist {
			best, bestDist = f, minDist
		}
	}
	return best
}

// teamNamePool is the fixed funny-name pool for randomize.
var teamNamePool = []string{
	"Mud Hornets", "Swamp Foxes", "Feral Compasses", "Thundersloths",
	"Brave Marmots", "Soggy Socks", "Lost Penguins", "Rogue Squirrels",
	"Iron Hedgehogs", "Wandering Yetis", "Turbo Turtles", "Caffeinated Owls",
	"Mossy Boulders", "Screaming Eagles", "Backwards Badgers", "Puddle Pirates",
}

// randomTeamName draws an unused name from the pool. ok is false when every
// name is taken.
func randomTeamName(usedLower map[string]bool) (string, bool) {
	free := make([]string, 0, len(teamNamePool))
	for _, n := range teamNamePool {
		if !usedLower[strings.ToLower(n)] {
			free = append(free, n)
		}
	}
	if len(free) == 0 {
		return "", false
	}
	return free[rand.IntN(len(free))], true
}

var teamBadges = []string{
	"compass", "tent", "campfire", "mountain", "paddle",
	"lantern", "rope", "map", "binoculars", "axe",
}

func randomBadge() string {
	return teamBadges[rand.IntN(len(teamBadges))]
}
