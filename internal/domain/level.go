package domain

import "math"

// Level curve: level 1 covers 0-99 XP and reaching level n takes (n-1)²·100 XP.
// The server is authoritative for Pet.Level; these helpers exist to render
// progress when stats have not been fetched yet.

// MaxLevel is the highest level whose XP threshold fits in an int.
var MaxLevel = func() int {
	limit := math.MaxInt / 100
	n := int(math.Sqrt(float64(limit)))
	for n > 0 && n*n > limit {
		n--
	}
	for (n+1)*(n+1) <= limit {
		n++
	}
	return n + 1
}()

// LevelForXP returns the level reached with xp experience points.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	level := int(math.Sqrt(float64(xp)/100)) + 1
	if level > MaxLevel {
		level = MaxLevel
	}
	// float rounding can be off by one either way
	for level > 1 && XPForLevel(level) > xp {
		level--
	}
	for level < MaxLevel && XPForLevel(level+1) <= xp {
		level++
	}
	return level
}

// XPForLevel returns the total XP needed to reach level. Levels above
// MaxLevel saturate at MaxLevel's threshold.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return (level - 1) * (level - 1) * 100
}

// XPToNextLevel returns how much XP is missing to reach the next level.
func XPToNextLevel(xp int) int {
	if xp < 0 {
		xp = 0
	}
	level := LevelForXP(xp)
	if level >= MaxLevel {
		return 0
	}
	return XPForLevel(level+1) - xp
}

// LevelProgress returns the fraction of the current level completed, in [0,1].
func LevelProgress(xp int) float64 {
	if xp < 0 {
		xp = 0
	}
	level := LevelForXP(xp)
	if level >= MaxLevel {
		return 1
	}
	floor := XPForLevel(level)
	span := XPForLevel(level+1) - floor
	if span <= 0 {
		return 0
	}
	p := float64(xp-floor) / float64(span)
	if p > 1 {
		return 1
	}
	return p
}

// LocalStats derives the XP-related part of PetStats from the pet alone.
func LocalStats(p Pet) PetStats {
	return PetStats{
		CurrentStreak: p.StreakDays,
		XPToNextLevel: XPToNextLevel(p.TotalXP),
		LevelProgress: LevelProgress(p.TotalXP),
	}
}
