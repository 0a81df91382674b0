package bindgen

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/NoelVillette/visp/bindgen/header"
	"github.com/NoelVillette/visp/bindgen/submodule"
)

type SubmoduleStats struct {
	Name      string
	Headers   int
	Classes   int
	Enums     int
	Functions int
	Templates int // skipped, need explicit instantiation
	Units     int
}

type Timing struct {
	Stage    string
	Duration time.Duration
}

// Stats summarizes a generator run.
type Stats struct {
	Headers    int
	Submodules []SubmoduleStats
	Timings    []Timing
	Files      []string
}

func (s *Stats) addSubmodule(sub *submodule.Submodule, set *header.Set, units int) {
	ss := SubmoduleStats{
		Name:    sub.Name,
		Headers: len(sub.Headers),
		Units:   units,
	}
	for _, id := range sub.Headers {
		for _, ent := range set.Get(id).Entities {
			switch {
			case ent.Template:
				ss.Templates++
			case ent.Kind == header.Class:
				ss.Classes++
			case ent.Kind == header.Enum:
				ss.Enums++
			case ent.Kind == header.Function:
				ss.Functions++
			}
		}
	}
	s.Submodules = append(s.Submodules, ss)
}

// Render writes the stats as tables.
func (s *Stats) Render(w io.Writer) {
	fmt.Fprintf(w, "==Binding stats==\n")
	{
		tbl := tablewriter.NewWriter(w)
		tbl.SetHeader([]string{"Submodule", "Headers", "Classes", "Enums", "Functions", "Templates", "Units"})
		var total SubmoduleStats
		for _, ss := range s.Submodules {
			tbl.Append(statsRow(ss))
			total.Headers += ss.Headers
			total.Classes += ss.Classes
			total.Enums += ss.Enums
			total.Functions += ss.Functions
			total.Templates += ss.Templates
			total.Units += ss.Units
		}
		total.Name = "==TOTAL=="
		tbl.Append(statsRow(total))
		tbl.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
			tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
		tbl.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		tbl.SetCenterSeparator("|")
		tbl.Render()
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "==Timing stats==\n")
	{
		var timeTotal time.Duration
		for _, t := range s.Timings {
			timeTotal += t.Duration
		}
		timePercent := func(t time.Duration) string {
			if timeTotal == 0 {
				return "0.00"
			}
			return strconv.FormatFloat(
				float64(t)/float64(timeTotal)*100,
				'f', 2, 64,
			)
		}

		tbl := tablewriter.NewWriter(w)
		tbl.SetHeader([]string{"Stage", "Time", "Time %"})
		for _, t := range s.Timings {
			tbl.Append([]string{t.Stage, t.Duration.String(), timePercent(t.Duration)})
		}
		tbl.Append([]string{"==TOTAL==", timeTotal.String(), "100"})
		tbl.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_RIGHT})
		tbl.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		tbl.SetCenterSeparator("|")
		tbl.Render()
	}
}

func statsRow(ss SubmoduleStats) []string {
	return []string{
		ss.Name,
		strconv.Itoa(ss.Headers),
		strconv.Itoa(ss.Classes),
		strconv.Itoa(ss.Enums),
		strconv.Itoa(ss.Functions),
		strconv.Itoa(ss.Templates),
		strconv.Itoa(ss.Units),
	}
}
