package roundtable

import (
	"fmt"
	"strings"
)

const mechanicalRole = `You are the Shop Foreman of a salvage workshop. You think in steel, welds, bearings and load paths. Given a build problem and the salvage on hand, lay out the mechanical approach: structure, frame, drivetrain, fabrication sequence, what to reuse and what to buy.`

const controlsRole = `You are the Precision Engineer. You handle motors, wiring, sensors and control logic. Given the build problem, the salvage on hand and the foreman's mechanical notes, specify the electrical and control approach: power budget, motor selection, wiring topology, safety interlocks.`

const synthesisRole = `You are the General Contractor. You turn the specialists' notes into one coherent build plan. Respond with a single JSON object, no prose, matching:
{"novice":"","journeyman":"","master":"","parts":[{"name":"","quantity":1,"source":""}],"safety":[],"difficulty":1,"est_hours":0,"est_cost":0}
"novice" is a patient step-by-step walkthrough, "journeyman" the standard plan, "master" a terse expert summary. Parts are listed in build order. Difficulty is 1-5.`

func mechanicalPrompt(req Request, salvage string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project type: %s\nProblem: %s\n", req.ProjectType, req.Problem)
	if salvage != "" {
		sb.WriteString(salvage)
	}
	sb.WriteString("Give your mechanical assessment.")
	return sb.String()
}

func controlsPrompt(req Request, salvage, mechNotes string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project type: %s\nProblem: %s\n", req.ProjectType, req.Problem)
	if salvage != "" {
		sb.WriteString(salvage)
	}
	fmt.Fprintf(&sb, "Foreman's mechanical notes:\n%s\n", mechNotes)
	sb.WriteString("Give your controls and electrical assessment.")
	return sb.String()
}

func synthesisPrompt(req Request, detail, salvage, mechNotes, ctrlNotes string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project type: %s\nProblem: %s\n", req.ProjectType, req.Problem)
	if salvage != "" {
		sb.WriteString(salvage)
	}
	fmt.Fprintf(&sb, "Foreman's mechanical notes:\n%s\n", mechNotes)
	fmt.Fprintf(&sb, "Engineer's controls notes:\n%s\n", ctrlNotes)
	switch detail {
	case DetailNovice:
		sb.WriteString("Emphasis: make the novice tier exhaustive; keep journeyman and master brief.")
	case DetailMaster:
		sb.WriteString("Emphasis: make the master tier the primary plan; keep novice and journeyman brief.")
	default:
		sb.WriteString("Produce all three tiers at full depth.")
	}
	return sb.String()
}
