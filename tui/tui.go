// Package tui shows a running SNR sweep: a results table, a BER gauge, the
// waveform and bit traces of a preview run and the log.
package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/jrwynneiii/linksim/config"
	"github.com/jrwynneiii/linksim/mod"
	"github.com/jrwynneiii/linksim/sim"
	"github.com/navidys/tvxwidgets"
	"github.com/rivo/tview"
)

var LogOut *tview.TextView

// previewBits is the shortest whole-symbol prefix of bits whose waveform
// covers n samples. Every bit spans mpp samples under either scheme.
func previewBits(bits []uint8, s mod.Scheme, mpp, n int) []uint8 {
	per := s.BitsPerSymbol()
	want := max((n+mpp-1)/mpp, 1)
	want = (want + per - 1) / per * per
	return bits[:min(want, len(bits))]
}

type traces struct {
	// transmitted and received samples
	signal [][]float64
	// bit indicator and demodulated product
	bits [][]float64
	// end of the plotted window in seconds
	span float64
}

// waveformTraces cuts the first n samples of every trace of a run.
func waveformTraces(o *sim.Outcome, n int) traces {
	n = min(n, len(o.Waveform.Samples), len(o.Received), len(o.Waveform.Indicator), len(o.Demod.Product))
	cut := func(src []float64) []float64 {
		out := make([]float64, n)
		copy(out, src)
		return out
	}
	tr := traces{
		signal: [][]float64{cut(o.Waveform.Samples), cut(o.Received)},
		bits:   [][]float64{cut(o.Waveform.Indicator), cut(o.Demod.Product)},
	}
	if n > 0 {
		tr.span = o.Waveform.Time()[n-1]
	}
	return tr
}

// StartUI runs the sweep behind the UI and blocks until the user quits.
// Quitting before the sweep finishes cancels it.
func StartUI(ctx context.Context, p sim.Params, bits []uint8, opts sim.SweepOptions, tuiConf config.TuiConf) ([]sim.Point, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := tview.NewApplication()

	LogOut = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	sweepData := NewSweepTableData(tuiConf.BERWarnPct, tuiConf.BERCritPct)
	status := &StatusTableData{params: p, bits: len(bits), total: len(opts.SNRs), started: time.Now(), state: "running"}
	sweepTable := tview.NewTable().SetContent(sweepData)
	statusTable := tview.NewTable().SetContent(status)

	signalPlot := tvxwidgets.NewPlot()
	signalPlot.SetLineColor([]tcell.Color{tcell.ColorLightSkyBlue, tcell.ColorOrange})
	signalPlot.SetMarker(tvxwidgets.PlotMarkerBraille)

	bitPlot := tvxwidgets.NewPlot()
	bitPlot.SetLineColor([]tcell.Color{tcell.ColorGreen, tcell.ColorRed})
	bitPlot.SetMarker(tvxwidgets.PlotMarkerBraille)

	berGauge := tvxwidgets.NewUtilModeGauge()
	berGauge.SetLabel("Bit Error Rate:     ")
	berGauge.SetLabelColor(tcell.ColorLightSkyBlue)
	berGauge.SetWarnPercentage(tuiConf.BERWarnPct)
	berGauge.SetCritPercentage(tuiConf.BERCritPct)
	berGauge.SetEmptyColor(tcell.ColorBlack)
	berGauge.SetBorder(false)

	gaugeBox := tview.NewFlex()
	gaugeBox.SetDirection(tview.FlexRow)
	gaugeBox.AddItem(berGauge, 0, 1, false)
	gaugeBox.SetTitle("Latest Point")
	gaugeBox.SetBorder(true)

	if tuiConf.EnableLogOutput {
		LogOut.SetChangedFunc(func() {
			LogOut.ScrollToEnd()
			app.Draw()
		})
		LogOut.SetBorder(true).SetTitle("Log Output")
		log.SetOutput(LogOut)
		defer log.SetOutput(os.Stderr)
	}
	sweepTable.SetSelectable(false, false).SetBorder(true).SetTitle("SNR Sweep")
	statusTable.SetSelectable(false, false).SetBorder(false)

	statusBox := tview.NewFlex().SetDirection(tview.FlexRow)
	statusBox.AddItem(statusTable, 0, 1, false)
	statusBox.SetBorder(true)
	statusBox.SetTitle("Link Status")

	signalPlot.SetBorder(true)
	signalPlot.SetTitle("TX (blue) / RX (orange)")
	bitPlot.SetBorder(true)
	bitPlot.SetTitle("Bits (green) / Demodulated product (red)")

	page := tview.NewFlex().SetDirection(tview.FlexColumn)

	leftCol := tview.NewFlex().SetDirection(tview.FlexRow)
	leftCol.AddItem(sweepTable, 0, 3, false)
	leftCol.AddItem(statusBox, 0, 1, false)

	rightCol := tview.NewFlex().SetDirection(tview.FlexRow)
	rightCol.AddItem(gaugeBox, 3, 0, false)
	rightCol.AddItem(signalPlot, 0, 2, false)
	rightCol.AddItem(bitPlot, 0, 2, false)
	if tuiConf.EnableLogOutput {
		rightCol.AddItem(LogOut, 0, 2, false)
	}

	page.AddItem(leftCol, 0, 2, false)
	page.AddItem(rightCol, 0, 3, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	// Preview the head of the image at the configured SNR for the plots
	if o, err := sim.Run(p, previewBits(bits, p.Scheme, p.Mpp, tuiConf.PlotSamples)); err != nil {
		log.Errorf("Could not simulate preview run: %v", err)
	} else {
		tr := waveformTraces(o, tuiConf.PlotSamples)
		signalPlot.SetData(tr.signal)
		signalPlot.SetTitle(fmt.Sprintf("TX (blue) / RX (orange), first %.3f ms", tr.span*1000))
		bitPlot.SetData(tr.bits)
		bitPlot.SetTitle(fmt.Sprintf("Bits (green) / Demodulated product (red), first %.3f ms", tr.span*1000))
	}

	// Points are buffered so the sweep never waits on the UI
	pointCh := make(chan sim.Point, len(opts.SNRs))
	opts.OnPoint = func(pt sim.Point) {
		pointCh <- pt
	}

	var (
		points   []sim.Point
		sweepErr error
		done     = make(chan struct{})
	)
	go func() {
		defer close(done)
		points, sweepErr = sim.Sweep(ctx, p, bits, opts)
		if sweepErr != nil {
			log.Errorf("Sweep failed: %v", sweepErr)
			return
		}
		log.Infof("Sweep finished over %d SNR points, press q to quit", len(points))
	}()

	addPoint := func(pt sim.Point) {
		app.QueueUpdateDraw(func() {
			sweepData.Add(pt)
			berGauge.SetValue(pt.BER * 100)
			status.done++
		})
	}

	//Update stats
	go func() {
		finished := done
		refresh := time.Duration(tuiConf.RefreshMs) * time.Millisecond
		for {
			select {
			case <-ctx.Done():
				return
			case pt := <-pointCh:
				addPoint(pt)
			case <-finished:
				finished = nil
				for len(pointCh) > 0 {
					addPoint(<-pointCh)
				}
				state := "done"
				if sweepErr != nil {
					state = "failed"
				}
				app.QueueUpdateDraw(func() {
					status.state = state
					status.elapsed = time.Since(status.started)
				})
			case <-time.After(refresh):
				app.QueueUpdateDraw(func() {
					if status.state == "running" {
						status.elapsed = time.Since(status.started)
					}
				})
			}
		}
	}()

	if err := app.SetRoot(page, true).EnableMouse(true).Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	cancel()
	<-done
	return points, sweepErr
}
