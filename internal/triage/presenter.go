package triage

import (
	"fmt"

	"carecompanion/pkg"
)

// Display is the fixed presentation metadata for one triage level.
type Display struct {
	Color  string
	Status string
}

// displayTable maps every recognized level to its display metadata. The init
// check below keeps the table exhaustive over the closed enumeration, so a
// new level cannot slip in silently behind the runtime fallback.
var displayTable = map[pkg.TriageLevel]Display{
	pkg.LevelEmergency: {Color: "#e63946", Status: "🔴 Emergency — Immediate care required!"},
	pkg.LevelUrgent:    {Color: "#ff8800", Status: "🟠 Urgent — Needs prompt medical attention."},
	pkg.LevelRoutine:   {Color: "#2a9d8f", Status: "🟢 Routine — No red flags; symptoms appear non-urgent."},
	pkg.LevelNormal:    {Color: "#2a9d8f", Status: "🟢 Normal — Stable, no emergency detected."},
}

func init() {
	for _, l := range pkg.TriageLevels {
		if _, ok := displayTable[l]; !ok {
			panic(fmt.Sprintf("triage: display table missing level %q", l))
		}
	}
}

// Present maps a verdict to its display form. Unrecognized levels fall back
// to Routine's entry, defensive against future enum drift.
func Present(verdict pkg.TriageVerdict) pkg.DisplayTriage {
	level := verdict.Level.Normalize()
	d := displayTable[level]
	return pkg.DisplayTriage{
		Level:  level,
		Reason: verdict.Reason,
		Color:  d.Color,
		Status: d.Status,
	}
}
