package engine

import (
	"slices"

	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/subject"
)

// ReasonUngated marks instruments active because nothing gates them.
const ReasonUngated = "ungated"

// ActiveSet is the set of active measure ids in checklist order.
type ActiveSet []string

// Contains reports whether measureID is active.
func (s ActiveSet) Contains(measureID string) bool {
	return slices.Contains(s, measureID)
}

// Step records one instrument becoming active.
type Step struct {
	Sweep     int      `json:"sweep"`
	MeasureID string   `json:"measure_id"`
	Reason    string   `json:"reason"`            // ungated, all-pass or one-pass
	Sources   []string `json:"sources,omitempty"` // passing condition sources
}

// Activation is the result of one Engine.Activate call.
type Activation struct {
	Program     string    `json:"program"`
	ProgramHash string    `json:"program_hash"`
	Active      ActiveSet `json:"active"`
	Sweeps      int       `json:"sweeps"`
	Converged   bool      `json:"converged"`
	Trace       []Step    `json:"trace"`
	Err         error     `json:"-"`

	instruments []ir.Instrument
	answers     subject.AnswerState
}

// Progress summarizes how much of the active checklist is answered.
type Progress struct {
	Active           int `json:"active"`
	Answered         int `json:"answered"`
	Required         int `json:"required"`
	RequiredAnswered int `json:"required_answered"`
}

// Complete reports whether every required active instrument is answered.
func (p Progress) Complete() bool {
	return p.RequiredAnswered == p.Required
}

// Inactive returns the instruments that are not active, in checklist order.
func (a *Activation) Inactive() []string {
	var out []string
	for _, inst := range a.instruments {
		if !a.Active.Contains(inst.ID) {
			out = append(out, inst.ID)
		}
	}
	return out
}

// Pending returns the active instruments still waiting for an answer.
func (a *Activation) Pending() []ir.Instrument {
	var out []ir.Instrument
	for _, inst := range a.instruments {
		if a.Active.Contains(inst.ID) && !a.answered(inst.ID) {
			out = append(out, inst)
		}
	}
	return out
}

// Progress counts active, answered and required instruments.
func (a *Activation) Progress() Progress {
	var p Progress
	for _, inst := range a.instruments {
		if !a.Active.Contains(inst.ID) {
			continue
		}
		answered := a.answered(inst.ID)
		p.Active++
		if answered {
			p.Answered++
		}
		if !inst.Optional {
			p.Required++
			if answered {
				p.RequiredAnswered++
			}
		}
	}
	return p
}

func (a *Activation) answered(measureID string) bool {
	if a.answers == nil {
		return false
	}
	_, ok := a.answers.Answer(measureID)
	return ok
}
