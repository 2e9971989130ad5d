package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/shottracker/shottracker/internal/aim"
	"github.com/shottracker/shottracker/internal/api"
	"github.com/shottracker/shottracker/internal/ballistics"
	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/internal/reticle"
	"github.com/shottracker/shottracker/internal/windangle"
	"github.com/shottracker/shottracker/pkg/core"
	"github.com/spf13/pflag"
)

const defaultZeroYards = 100

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addServerFlag(fs *pflag.FlagSet) {
	fs.String("api.serverUrl", "", "ballistics service URL")
}

// addRifleFlags registers the flags that describe a rifle either by stored
// ID or inline.
func addRifleFlags(fs *pflag.FlagSet) {
	fs.String("rifle-id", "", "stored rifle profile ID")
	fs.String("name", "", "rifle name")
	fs.Float64("velocity", 0, "muzzle velocity in fps")
	fs.Float64("zero", defaultZeroYards, "zero distance in yards")
}

func inlineRifle(fs *pflag.FlagSet) core.RifleProfile {
	name, _ := fs.GetString("name")
	velocity, _ := fs.GetFloat64("velocity")
	zero, _ := fs.GetFloat64("zero")
	return core.RifleProfile{Name: name, ZeroYards: zero, MuzzleVelocityFPS: velocity}
}

func parseFloatArg(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

func (c *cli) rifles(ctx context.Context, args []string) error {
	fs := c.newFlagSet("rifles")
	addServerFlag(fs)
	fs.String("name", "", "rifle name (add)")
	fs.Float64("velocity", 0, "muzzle velocity in fps (add)")
	fs.Float64("zero", defaultZeroYards, "zero distance in yards (add)")
	fs.Bool("json", false, "print JSON")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	asJSON, _ := fs.GetBool("json")
	client := api.New(config.GetString("api.serverUrl"))

	sub := "list"
	if fs.NArg() > 0 {
		sub = fs.Arg(0)
	}

	switch sub {
	case "list":
		rifles, err := client.ListRifles(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return writeIndented(c.stdout, rifles)
		}
		tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tZERO (yd)\tVELOCITY (fps)")
		for _, r := range rifles {
			fmt.Fprintf(tw, "%s\t%s\t%g\t%g\n", r.ID, r.Name, r.ZeroYards, r.MuzzleVelocityFPS)
		}
		return tw.Flush()

	case "add":
		rifle, err := client.CreateRifle(ctx, inlineRifle(fs))
		if err != nil {
			return err
		}
		if asJSON {
			return writeIndented(c.stdout, rifle)
		}
		fmt.Fprintf(c.stdout, "created %s (%s)\n", rifle.ID, rifle.Name)
		return nil

	case "get":
		if fs.NArg() != 2 {
			return errors.New("usage: rifles get ID")
		}
		rifle, err := client.GetRifle(ctx, fs.Arg(1))
		if err != nil {
			return err
		}
		if asJSON {
			return writeIndented(c.stdout, rifle)
		}
		fmt.Fprintf(c.stdout, "%s %q zero %g yd, %g fps\n", rifle.ID, rifle.Name, rifle.ZeroYards, rifle.MuzzleVelocityFPS)
		return nil

	default:
		return fmt.Errorf("unknown rifles command %q", sub)
	}
}

func (c *cli) shots(ctx context.Context, args []string) error {
	fs := c.newFlagSet("shots")
	addServerFlag(fs)
	fs.Int("limit", 10, "number of shots, newest first")
	fs.Bool("json", false, "print JSON")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	limit, _ := fs.GetInt("limit")
	asJSON, _ := fs.GetBool("json")

	shots, err := api.New(config.GetString("api.serverUrl")).RecentShots(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return writeIndented(c.stdout, shots)
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSOURCE\tRIFLE\tDISTANCE\tWIND\tDROP\tDRIFT")
	for _, s := range shots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g yd\t%g mph @ %g\t%.1f MOA\t%.1f MOA\n",
			s.Time.Format("2006-01-02 15:04:05"), s.Source, s.Request.Rifle.Name,
			s.Result.DistanceYards, s.Result.WindSpeedMPH, s.Result.WindAngleDeg,
			s.Result.DropMOA, s.Result.DriftMOA)
	}
	return tw.Flush()
}

func (c *cli) calc(ctx context.Context, args []string) error {
	fs := c.newFlagSet("calc")
	addServerFlag(fs)
	addRifleFlags(fs)
	fs.Float64("distance", 0, "distance to target in yards")
	fs.Float64("wind-speed", 0, "wind speed in mph")
	fs.Float64("wind-angle", 0, "relative wind angle in degrees, overrides bearings")
	fs.Float64("heading", 0, "shooting bearing in degrees")
	fs.Float64("wind-from", 0, "bearing the wind blows from in degrees")
	fs.Bool("local", false, "calculate in process instead of calling the service")
	fs.Bool("json", false, "print JSON")
	if err := c.parse(fs, args); err != nil {
		return err
	}

	local, _ := fs.GetBool("local")
	asJSON, _ := fs.GetBool("json")
	rifleID, _ := fs.GetString("rifle-id")

	cond := aim.Conditions{Rifle: inlineRifle(fs)}
	cond.DistanceYards, _ = fs.GetFloat64("distance")
	cond.WindSpeedMPH, _ = fs.GetFloat64("wind-speed")

	switch {
	case fs.Changed("wind-angle"):
		angle, _ := fs.GetFloat64("wind-angle")
		cond.ManualAngle = &angle
	case fs.Changed("heading") && fs.Changed("wind-from"):
		heading, _ := fs.GetFloat64("heading")
		wind, _ := fs.GetFloat64("wind-from")
		shooting, from := core.Bearing(heading), core.Bearing(wind)
		cond.Shooting, cond.Wind = &shooting, &from
	default:
		return errors.New("set --wind-angle, or both --heading and --wind-from")
	}

	var calc aim.Calculator = aim.Local()
	if !local || rifleID != "" {
		client := api.New(config.GetString("api.serverUrl"))
		if rifleID != "" {
			rifle, err := client.GetRifle(ctx, rifleID)
			if err != nil {
				return fmt.Errorf("rifle %s: %w", rifleID, err)
			}
			cond.Rifle = rifle.RifleProfile
		}
		if !local {
			calc = client
		}
	}

	solver := aim.NewSolver(calc, reticle.New(reticle.Config(config.GetReticleConfig())))
	sol, err := solver.Solve(ctx, cond)
	if err != nil {
		return err
	}
	c.log.Debug("Solved shot", "distance", cond.DistanceYards, "angle", sol.WindAngle, "local", local)

	if asJSON {
		return writeIndented(c.stdout, sol)
	}
	printSolution(c.stdout, sol)
	return nil
}

func printSolution(w io.Writer, sol aim.Solution) {
	r := sol.Result
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "Distance:\t%g yd\n", r.DistanceYards)
	fmt.Fprintf(tw, "Wind:\t%g mph at %g° (%s)\n", r.WindSpeedMPH, sol.WindAngle, sol.WindCategory)
	fmt.Fprintf(tw, "Drop:\t%s\n", sol.DropText)
	drift := sol.DriftText
	if drift == "" {
		drift = "none"
	}
	fmt.Fprintf(tw, "Drift:\t%s\n", drift)
	printMarker(tw, sol.Layout)
	_ = tw.Flush()
}

func printMarker(w io.Writer, l reticle.Layout) {
	clamped := ""
	if l.Clamped {
		clamped = " (clamped)"
	}
	fmt.Fprintf(w, "Marker:\tx=%.1f y=%.1f px%s\n", l.MarkerX, l.MarkerY, clamped)
}

func (c *cli) reticle(_ context.Context, args []string) error {
	fs := c.newFlagSet("reticle")
	fs.Float64("drop-moa", 0, "drop correction in MOA")
	fs.Float64("drift-moa", 0, "drift correction in MOA")
	fs.Float64("drop-in", 0, "drop in inches, for the label")
	fs.Float64("drift-in", 0, "drift in inches, for the label")
	fs.Float64("distance", 0, "derive MOA from inches at this distance in yards")
	fs.Bool("json", false, "print the full layout as JSON")
	if err := c.parse(fs, args); err != nil {
		return err
	}

	var drop, drift core.Correction
	drop.MOA, _ = fs.GetFloat64("drop-moa")
	drift.MOA, _ = fs.GetFloat64("drift-moa")
	drop.Inches, _ = fs.GetFloat64("drop-in")
	drift.Inches, _ = fs.GetFloat64("drift-in")
	if distance, _ := fs.GetFloat64("distance"); distance > 0 {
		if !fs.Changed("drop-moa") {
			drop.MOA = ballistics.InchesToMOA(drop.Inches, distance)
		}
		if !fs.Changed("drift-moa") {
			drift.MOA = ballistics.InchesToMOA(drift.Inches, distance)
		}
	}

	layout := reticle.New(reticle.Config(config.GetReticleConfig())).Project(drop, drift)
	if asJSON, _ := fs.GetBool("json"); asJSON {
		return writeIndented(c.stdout, layout)
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "Drop:\t%s\n", layout.DropLabel)
	if layout.ShowDriftLabel {
		fmt.Fprintf(tw, "Drift:\t%s\n", layout.DriftLabel)
	}
	printMarker(tw, layout)
	return tw.Flush()
}

func (c *cli) angle(_ context.Context, args []string) error {
	fs := c.newFlagSet("angle")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: angle SHOOTING WIND")
	}
	shooting, err := parseFloatArg("shooting bearing", fs.Arg(0))
	if err != nil {
		return err
	}
	wind, err := parseFloatArg("wind bearing", fs.Arg(1))
	if err != nil {
		return err
	}

	s, w := core.Bearing(shooting), core.Bearing(wind)
	a := windangle.Resolve(s, w)
	fmt.Fprintf(c.stdout, "%g° %s (shooting %s, wind from %s)\n",
		a, windangle.Classify(a), windangle.Compass(s), windangle.Compass(w))
	return nil
}
