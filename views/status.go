package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

type WorkerRow struct {
	ID        int
	Step      string
	Progress  float64
	FramesOut int64
	Paused    bool
	JobPath   string
}

type JobRow struct {
	ID         int64
	Path       string
	OutputPath string
	Factor     int
	Mode       string
}

type FailedRow struct {
	JobID  int64
	Path   string
	Status string
	Error  string
}

type StatusPage struct {
	Workers []WorkerRow
	Queue   []JobRow
	Failed  []FailedRow
}

// Status renders the dashboard. It refreshes itself from the /ws feed.
func Status(page StatusPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>flowarr</title>`)
		p.raw(`<style>body{font-family:sans-serif;margin:2em}table{border-collapse:collapse;margin-bottom:2em}td,th{border:1px solid #ccc;padding:4px 8px}</style>`)
		p.raw(`</head><body><h1>flowarr</h1>`)

		p.raw(`<h2>Workers</h2><table><tr><th>ID</th><th>Job</th><th>Step</th><th>Progress</th><th>Frames</th></tr>`)
		for _, worker := range page.Workers {
			step := worker.Step
			if worker.Paused {
				step += " (paused)"
			}
			p.raw(fmt.Sprintf(`<tr id="worker-%d">`, worker.ID))
			p.cell(fmt.Sprint(worker.ID))
			p.cell(worker.JobPath)
			p.cell(step)
			p.cell(fmt.Sprintf("%.0f%%", worker.Progress))
			p.cell(fmt.Sprint(worker.FramesOut))
			p.raw(`</tr>`)
		}
		p.raw(`</table>`)

		p.raw(`<h2>Queue</h2><table><tr><th>ID</th><th>Input</th><th>Output</th><th>Factor</th><th>Mode</th></tr>`)
		for _, job := range page.Queue {
			p.raw(`<tr>`)
			p.cell(fmt.Sprint(job.ID))
			p.cell(job.Path)
			p.cell(job.OutputPath)
			p.cell(fmt.Sprint(job.Factor))
			p.cell(job.Mode)
			p.raw(`</tr>`)
		}
		p.raw(`</table>`)

		p.raw(`<h2>Failed</h2><table><tr><th>Job</th><th>Input</th><th>Status</th><th>Error</th></tr>`)
		for _, failed := range page.Failed {
			p.raw(`<tr>`)
			p.cell(fmt.Sprint(failed.JobID))
			p.cell(failed.Path)
			p.cell(failed.Status)
			p.cell(failed.Error)
			p.raw(`</tr>`)
		}
		p.raw(`</table>`)

		p.raw(`<script>new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/ws").onmessage=function(){clearTimeout(window.r);window.r=setTimeout(function(){location.reload()},1000)};</script>`)
		p.raw(`</body></html>`)
		return p.err
	})
}

// printer keeps the first write error so the template reads straight through.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) cell(s string) {
	p.raw("<td>" + templ.EscapeString(s) + "</td>")
}
