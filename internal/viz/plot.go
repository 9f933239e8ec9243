// Package viz renders run and tuning results to PNG files.
package viz

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/pso"
)

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(20)
	p.Title.Padding = vg.Points(10)

	p.X.Label.TextStyle.Font.Size = vg.Points(16)
	p.Y.Label.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Padding = vg.Points(8)
	p.Y.Label.Padding = vg.Points(8)

	p.X.Tick.Label.Font.Size = vg.Points(12)
	p.Y.Tick.Label.Font.Size = vg.Points(12)
}

func savePNG(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	defer bw.Flush()

	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return nil
}

// SaveLinePlot writes a single-series line plot.
func SaveLinePlot(outDir, filename, title, xlabel, ylabel string, xs, ys []float64) error {
	if len(xs) != len(ys) || len(xs) == 0 {
		return fmt.Errorf("plot data invalid: %d x, %d y", len(xs), len(ys))
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	stylePlot(p)

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(2.0)
	p.Add(line)

	return savePNG(p, 8.0, 5.0, filepath.Join(outDir, filename))
}

// SaveTrajectory writes the standard run plots: cart position, both joint
// angles, and the control force.
func SaveTrajectory(outDir string, traj dynamo.Trajectory) error {
	t := traj.Times
	col := func(idx int) []float64 {
		out := make([]float64, len(traj.States))
		for i, x := range traj.States {
			out[i] = x[idx]
		}
		return out
	}

	if err := SaveLinePlot(outDir, "cart_position.png", "Cart Position x(t)", "time (s)", "x (m)", t, col(dynamo.IdxCartPos)); err != nil {
		return err
	}
	if err := SaveLinePlot(outDir, "theta1.png", "First Joint Angle (0 = upright)", "time (s)", "theta1 (rad)", t, col(dynamo.IdxTheta1)); err != nil {
		return err
	}
	if err := SaveLinePlot(outDir, "theta2.png", "Second Joint Angle (0 = upright)", "time (s)", "theta2 (rad)", t, col(dynamo.IdxTheta2)); err != nil {
		return err
	}

	if len(traj.Controls) > 0 {
		forces := make([]float64, len(traj.Controls))
		for i, u := range traj.Controls {
			forces[i] = u.Force()
		}
		if err := SaveLinePlot(outDir, "control_force.png", "Control Force u(t)", "time (s)", "u (N)", t[1:len(forces)+1], forces); err != nil {
			return err
		}
	}
	return nil
}

// SaveSurface writes the sliding-surface trace of a run.
func SaveSurface(outDir string, times []float64, surface []float64) error {
	return SaveLinePlot(outDir, "sliding_surface.png", "Sliding Surface s(t)", "time (s)", "s", times, surface)
}

// SaveConvergence writes the optimizer's per-iteration best cost.
func SaveConvergence(outDir string, history []pso.IterStats) error {
	if len(history) == 0 {
		return fmt.Errorf("empty tuning history")
	}
	iters := make([]float64, len(history))
	best := make([]float64, len(history))
	for i, st := range history {
		iters[i] = float64(st.Iter)
		best[i] = st.BestCost
	}
	return SaveLinePlot(outDir, "convergence.png", "Swarm Best Cost", "iteration", "cost", iters, best)
}
