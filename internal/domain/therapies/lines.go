package therapies

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/pkg/clinical"
)

// Codes the line engine keys on.
const (
	// Sole drug class that marks a therapy as anti-hormonal maintenance.
	antiHormonalCategory = "(Anti)hormonal"
	// RECIST progressive disease.
	progressionCode = "LA28370-7"
	// SNOMED: treatment not tolerated.
	notToleratedCode = "407563006"
)

// Adjunctive roles that mark a therapy as complementary to its line rather
// than a line of its own.
var complementaryRoleCodes = map[string]bool{
	"314122007": true,
	"133897009": true,
	"260364009": true,
	"74964007":  true,
}

func isComplementary(st *SystemicTherapy) bool {
	return st.AdjunctiveRole != nil && complementaryRoleCodes[st.AdjunctiveRole.Code]
}

// isAntiHormonal reports whether "(Anti)hormonal" is the only drug class
// appearing in the therapy's medications.
func isAntiHormonal(st *SystemicTherapy) bool {
	classes := drugClassSet(st)
	return len(classes) == 1 && classes[antiHormonalCategory]
}

func drugClassSet(sts ...*SystemicTherapy) map[string]bool {
	classes := map[string]bool{}
	for _, st := range sts {
		for _, m := range st.Medications {
			if m.TherapyCategory != nil {
				classes[m.TherapyCategory.Display] = true
			}
		}
	}
	return classes
}

func drugSet(sts ...*SystemicTherapy) map[string]bool {
	drugs := map[string]bool{}
	for _, st := range sts {
		for _, m := range st.Medications {
			drugs[m.Drug.Code] = true
		}
	}
	return drugs
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sameStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameConceptPtr(a, b *clinical.CodedConcept) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Code == b.Code
}

// cluster is a run of systemic therapies treated as one block when deriving
// lines: consecutive, overlapping, same intent, same adjunctive role.
type cluster struct {
	therapies []*SystemicTherapy
	// index of the first therapy within the case-wide ordered slice
	first int
}

func (c *cluster) head() *SystemicTherapy { return c.therapies[0] }
func (c *cluster) tail() *SystemicTherapy { return c.therapies[len(c.therapies)-1] }

func (c *cluster) period() clinical.Period {
	p := c.head().Period
	for _, st := range c.therapies[1:] {
		p = p.Union(st.Period)
	}
	return p
}

func clusterTherapies(ordered []*SystemicTherapy) []*cluster {
	var clusters []*cluster
	for i, st := range ordered {
		if len(clusters) > 0 {
			last := clusters[len(clusters)-1].tail()
			if st.Period.Overlaps(last.Period) &&
				!isAntiHormonal(last) &&
				sameStringPtr(st.Intent, last.Intent) &&
				sameConceptPtr(st.AdjunctiveRole, last.AdjunctiveRole) {
				c := clusters[len(clusters)-1]
				c.therapies = append(c.therapies, st)
				continue
			}
		}
		clusters = append(clusters, &cluster{therapies: []*SystemicTherapy{st}, first: i})
	}
	return clusters
}

// previousTherapy walks backwards from the cluster start and returns the
// nearest non-complementary systemic therapy, or nil.
func previousTherapy(ordered []*SystemicTherapy, before int) *SystemicTherapy {
	for i := before - 1; i >= 0; i-- {
		if !isComplementary(ordered[i]) {
			return ordered[i]
		}
	}
	return nil
}

// progressionBetween reports whether any progression date falls inside
// [from, to], treating nil bounds as unbounded.
func progressionBetween(dates []time.Time, from, to *time.Time) bool {
	for _, d := range dates {
		if from != nil && d.Before(*from) {
			continue
		}
		if to != nil && d.After(*to) {
			continue
		}
		return true
	}
	return false
}

// assignTherapyLines rebuilds the therapy lines of a case from scratch and
// reattaches every therapy. Runs after each therapy mutation, inside the
// caller's transaction.
func (s *Service) assignTherapyLines(ctx context.Context, caseID uuid.UUID) error {
	if err := s.lines.DeleteByCase(ctx, caseID); err != nil {
		return fmt.Errorf("clearing therapy lines: %w", err)
	}

	ordered, err := s.systemic.ListByCaseOrdered(ctx, caseID)
	if err != nil {
		return err
	}
	progressions, err := s.responses.ProgressionDates(ctx, caseID)
	if err != nil {
		return err
	}

	counters := map[string]int{IntentCurative: 0, IntentPalliative: 0}
	byLabel := map[string]*TherapyLine{}
	attached := map[uuid.UUID][]clinical.Period{}
	metastatic := false
	metastaticKnown := false

	for _, c := range clusterTherapies(ordered) {
		lineIntent := IntentCurative
		if c.head().Intent != nil {
			lineIntent = *c.head().Intent
		} else {
			if !metastaticKnown {
				if metastatic, err = s.metastases.HasMetastatic(ctx, caseID); err != nil {
					return err
				}
				metastaticKnown = true
			}
			if metastatic {
				lineIntent = IntentPalliative
			}
		}

		previous := previousTherapy(ordered, c.first)
		newLine := false
		switch {
		case counters[lineIntent] == 0:
			newLine = true
		case isComplementary(c.head()):
			newLine = false
		case previous != nil && !isAntiHormonal(previous) &&
			progressionBetween(progressions, previous.Period.Start, c.period().Start):
			newLine = true
		case previous != nil && previous.TerminationReason != nil &&
			previous.TerminationReason.Code == notToleratedCode:
			newLine = !sameSet(drugClassSet(c.therapies...), drugClassSet(previous)) && !isAntiHormonal(previous)
		case previous != nil && !isAntiHormonal(previous) &&
			introducesNewDrug(c.therapies, previous):
			newLine = true
		}

		var line *TherapyLine
		if newLine {
			counters[lineIntent]++
			line = &TherapyLine{
				CaseID:  caseID,
				Ordinal: counters[lineIntent],
				Intent:  lineIntent,
				Period:  c.period(),
			}
			if err := s.lines.Create(ctx, line); err != nil {
				return fmt.Errorf("creating therapy line: %w", err)
			}
			byLabel[LineLabel(lineIntent, counters[lineIntent])] = line
		} else {
			line = byLabel[LineLabel(lineIntent, counters[lineIntent])]
			if line == nil {
				return fmt.Errorf("therapy line %s missing for case %s", LineLabel(lineIntent, counters[lineIntent]), caseID)
			}
		}
		for _, st := range c.therapies {
			if err := s.systemic.AttachLine(ctx, st.ID, &line.ID); err != nil {
				return err
			}
			attached[line.ID] = append(attached[line.ID], st.Period)
		}
	}

	// Line periods from systemic therapies guide radiotherapy and surgery
	// attachment below.
	for _, line := range byLabel {
		line.Period = unionAll(attached[line.ID])
		if err := s.lines.Update(ctx, line); err != nil {
			return err
		}
	}

	radiotherapies, err := s.radio.ListByCaseOrdered(ctx, caseID)
	if err != nil {
		return err
	}
	for _, rt := range radiotherapies {
		line := earliestLine(byLabel, rt.Intent, func(l *TherapyLine) bool {
			return l.Period.Overlaps(rt.Period)
		})
		var lineID *uuid.UUID
		if line != nil {
			lineID = &line.ID
			attached[line.ID] = append(attached[line.ID], rt.Period)
		}
		if err := s.radio.AttachLine(ctx, rt.ID, lineID); err != nil {
			return err
		}
	}

	surgeries, err := s.surgeries.ListByCaseOrdered(ctx, caseID)
	if err != nil {
		return err
	}
	for _, sg := range surgeries {
		var line *TherapyLine
		if sg.Date != nil {
			line = earliestLine(byLabel, sg.Intent, func(l *TherapyLine) bool {
				return l.Period.Contains(*sg.Date)
			})
		}
		var lineID *uuid.UUID
		if line != nil {
			lineID = &line.ID
			end := sg.Date.AddDate(0, 0, 1)
			attached[line.ID] = append(attached[line.ID], clinical.Period{Start: sg.Date, End: &end})
		}
		if err := s.surgeries.AttachLine(ctx, sg.ID, lineID); err != nil {
			return err
		}
	}

	for _, line := range byLabel {
		line.Period = unionAll(attached[line.ID])
		if err := s.lines.Update(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func introducesNewDrug(therapies []*SystemicTherapy, previous *SystemicTherapy) bool {
	prevDrugs := drugSet(previous)
	for drug := range drugSet(therapies...) {
		if !prevDrugs[drug] {
			return true
		}
	}
	return false
}

func unionAll(periods []clinical.Period) clinical.Period {
	if len(periods) == 0 {
		return clinical.Period{}
	}
	p := periods[0]
	for _, other := range periods[1:] {
		p = p.Union(other)
	}
	return p
}

// earliestLine picks the overlap candidate with the lowest ordinal for the
// given intent. Therapies without an intent stay unattached.
func earliestLine(byLabel map[string]*TherapyLine, intent *string, match func(*TherapyLine) bool) *TherapyLine {
	if intent == nil {
		return nil
	}
	var best *TherapyLine
	for _, line := range byLabel {
		if line.Intent != *intent || !match(line) {
			continue
		}
		if best == nil || line.Ordinal < best.Ordinal {
			best = line
		}
	}
	return best
}

// decorateLine fills the derived label and progression-free survival from
// the case's progression dates.
func decorateLine(line *TherapyLine, progressions []time.Time) {
	line.decorate()
	if line.Period.Start == nil {
		return
	}
	var first *time.Time
	for i, d := range progressions {
		if d.Before(*line.Period.Start) {
			continue
		}
		if first == nil || d.Before(*first) {
			first = &progressions[i]
		}
	}
	if first != nil {
		pfs := clinical.MonthsBetween(*line.Period.Start, *first)
		line.ProgressionFreeSurvival = &pfs
	}
}
