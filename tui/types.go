package tui

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jrwynneiii/linksim/sim"
	"github.com/rivo/tview"
)

// SweepTableData lists the finished sweep points ordered by SNR. It is only
// touched from the UI goroutine.
type SweepTableData struct {
	tview.TableContentReadOnly
	points  []sim.Point
	warnPct float64
	critPct float64
}

type StatusTableData struct {
	tview.TableContentReadOnly
	params  sim.Params
	bits    int
	done    int
	total   int
	started time.Time
	elapsed time.Duration
	state   string
}

func NewSweepTableData(warnPct, critPct float64) *SweepTableData {
	return &SweepTableData{warnPct: warnPct, critPct: critPct}
}

// Add inserts pt keeping the rows ordered by SNR.
func (d *SweepTableData) Add(pt sim.Point) {
	idx, _ := slices.BinarySearchFunc(d.points, pt.SNR, func(p sim.Point, snr float64) int {
		switch {
		case p.SNR < snr:
			return -1
		case p.SNR > snr:
			return 1
		}
		return 0
	})
	d.points = slices.Insert(d.points, idx, pt)
}

func (d *SweepTableData) Points() []sim.Point {
	return d.points
}

// color picks the row colour for a BER given as a fraction.
func (d *SweepTableData) color(ber float64) tcell.Color {
	pct := ber * 100
	switch {
	case pct >= d.critPct:
		return tcell.ColorRed
	case pct >= d.warnPct:
		return tcell.ColorYellow
	}
	return tcell.ColorGreen
}

func (d *SweepTableData) GetRowCount() int {
	return len(d.points) + 1
}

func (d *SweepTableData) GetColumnCount() int {
	return 5
}

func (d *SweepTableData) GetCell(row, column int) *tview.TableCell {
	if row == 0 {
		switch column {
		case 0:
			return tview.NewTableCell("[lightskyblue]SNR (dB) ")
		case 1:
			return tview.NewTableCell("[white]Trials ")
		case 2:
			return tview.NewTableCell("[red]Errors ")
		case 3:
			return tview.NewTableCell("[white]BER ")
		case 4:
			return tview.NewTableCell("[lightskyblue]Est. SNR (dB)")
		}
		return tview.NewTableCell("ERROR")
	}

	if row-1 >= len(d.points) {
		return nil
	}
	pt := d.points[row-1]
	switch column {
	case 0:
		return tview.NewTableCell(fmt.Sprintf("[lightskyblue]%.1f", pt.SNR))
	case 1:
		return tview.NewTableCell(fmt.Sprintf("[white]%d", pt.Trials))
	case 2:
		return tview.NewTableCell(fmt.Sprintf("%d / %d", pt.Errors, pt.Bits)).SetTextColor(d.color(pt.BER))
	case 3:
		return tview.NewTableCell(fmt.Sprintf("%.4f", pt.BER)).SetTextColor(d.color(pt.BER))
	case 4:
		if math.IsInf(pt.EstimatedSNR, 0) {
			return tview.NewTableCell("[lightskyblue]inf")
		}
		return tview.NewTableCell(fmt.Sprintf("[lightskyblue]%.1f", pt.EstimatedSNR))
	}
	return tview.NewTableCell("ERROR")
}

func (s *StatusTableData) GetRowCount() int {
	return 5
}

func (s *StatusTableData) GetColumnCount() int {
	return 2
}

func (s *StatusTableData) GetCell(row, column int) *tview.TableCell {
	switch row {
	case 0:
		if column == 0 {
			return tview.NewTableCell("Link:")
		}
		return tview.NewTableCell(fmt.Sprintf("%v @ %.1f Hz, %d samples/period", s.params.Scheme, s.params.Fc, s.params.Mpp))
	case 1:
		if column == 0 {
			return tview.NewTableCell("Bits per trial:")
		}
		return tview.NewTableCell(fmt.Sprintf("%d", s.bits))
	case 2:
		if column == 0 {
			return tview.NewTableCell("SNR points:")
		}
		color := tcell.ColorYellow
		if s.done == s.total {
			color = tcell.ColorGreen
		}
		return tview.NewTableCell(fmt.Sprintf("%d / %d", s.done, s.total)).SetTextColor(color)
	case 3:
		if column == 0 {
			return tview.NewTableCell("Elapsed:")
		}
		return tview.NewTableCell(s.elapsed.Round(time.Millisecond).String())
	case 4:
		if column == 0 {
			return tview.NewTableCell("State:")
		}
		color := tcell.ColorGreen
		if s.state != "done" {
			color = tcell.ColorYellow
		}
		return tview.NewTableCell(s.state).SetTextColor(color)
	}
	return tview.NewTableCell("ERROR")
}
