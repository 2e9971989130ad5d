package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shottracker/shottracker/internal/aimclient"
	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/pkg/streaming"
)

const aimHelp = `Commands:
  heading DEG      shooting bearing
  wind DEG         bearing the wind blows from
  angle DEG|off    set or clear a manual wind angle
  pos A B          shooter and target as "lat,lon"
  range YARDS      distance to target
  speed MPH        wind speed
  quit
`

func (c *cli) aim(ctx context.Context, args []string) error {
	fs := c.newFlagSet("aim")
	addServerFlag(fs)
	addRifleFlags(fs)
	fs.Float64("distance", 0, "distance to target in yards")
	fs.Float64("wind-speed", 0, "wind speed in mph")
	if err := c.parse(fs, args); err != nil {
		return err
	}

	cond := streaming.ConditionsPayload{}
	cond.RifleID, _ = fs.GetString("rifle-id")
	if cond.RifleID == "" {
		rifle := inlineRifle(fs)
		cond.Rifle = &rifle
	}
	cond.DistanceYards, _ = fs.GetFloat64("distance")
	cond.WindSpeedMPH, _ = fs.GetFloat64("wind-speed")

	client, err := aimclient.Dial(config.GetString("api.serverUrl"), c.log)
	if err != nil {
		return err
	}
	defer client.Close()

	s := &aimSession{client: client, cond: cond, out: c.stdout}
	if err := s.show(client.SetConditions(ctx, cond)); err != nil {
		return err
	}
	fmt.Fprint(c.stdout, aimHelp)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			done, err := s.handle(ctx, line)
			if err != nil || done {
				return err
			}
		}
	}
}

// inputError is a bad command line; the session carries on.
type inputError string

func (e inputError) Error() string { return string(e) }

// aimSession applies one stdin command at a time to a live aim stream.
type aimSession struct {
	client *aimclient.Client
	cond   streaming.ConditionsPayload
	out    io.Writer
}

// handle runs one command line. It reports done for quit and returns an
// error only when the session cannot go on.
func (s *aimSession) handle(ctx context.Context, line string) (done bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	cmd, args := fields[0], fields[1:]
	if cmd == "quit" || cmd == "exit" {
		return true, nil
	}

	reply, err := s.dispatch(ctx, cmd, args)
	return false, s.show(reply, err)
}

func (s *aimSession) dispatch(ctx context.Context, cmd string, args []string) (aimclient.Reply, error) {
	arg := func(name string) (float64, error) {
		if len(args) != 1 {
			return 0, inputError(fmt.Sprintf("usage: %s %s", cmd, name))
		}
		v, err := parseFloatArg(name, args[0])
		if err != nil {
			return 0, inputError(err.Error())
		}
		return v, nil
	}

	switch cmd {
	case "heading":
		v, err := arg("DEG")
		if err != nil {
			return aimclient.Reply{}, err
		}
		return s.client.SetHeading(ctx, v)
	case "wind":
		v, err := arg("DEG")
		if err != nil {
			return aimclient.Reply{}, err
		}
		return s.client.SetWind(ctx, v)
	case "angle":
		if len(args) == 1 && args[0] == "off" {
			return s.client.SetManualAngle(ctx, nil)
		}
		v, err := arg("DEG|off")
		if err != nil {
			return aimclient.Reply{}, err
		}
		return s.client.SetManualAngle(ctx, &v)
	case "pos":
		if len(args) != 2 {
			return aimclient.Reply{}, inputError("usage: pos SHOOTER TARGET")
		}
		return s.client.SetPositions(ctx, args[0], args[1])
	case "range":
		v, err := arg("YARDS")
		if err != nil {
			return aimclient.Reply{}, err
		}
		s.cond.DistanceYards = v
		return s.client.SetConditions(ctx, s.cond)
	case "speed":
		v, err := arg("MPH")
		if err != nil {
			return aimclient.Reply{}, err
		}
		s.cond.WindSpeedMPH = v
		return s.client.SetConditions(ctx, s.cond)
	default:
		return aimclient.Reply{}, inputError(fmt.Sprintf("unknown command %q", cmd))
	}
}

// show prints a reply. Input and server errors are printed and swallowed;
// anything else ends the session.
func (s *aimSession) show(reply aimclient.Reply, err error) error {
	var serverErr *aimclient.ServerError
	switch {
	case errors.As(err, &serverErr):
		fmt.Fprintf(s.out, "error: %s\n", serverErr.Message)
		return nil
	case errors.As(err, new(inputError)):
		fmt.Fprintf(s.out, "error: %v\n", err)
		return nil
	case err != nil:
		return err
	}

	switch {
	case reply.Solution != nil:
		sol := reply.Solution
		drift := sol.DriftText
		if drift == "" {
			drift = "no drift"
		}
		fmt.Fprintf(s.out, "%g° %s | %g yd | %s | %s\n",
			sol.WindAngle, sol.WindCategory, sol.Result.DistanceYards, sol.DropText, drift)
	case reply.Ack != nil:
		fmt.Fprintf(s.out, "waiting for: %s\n", strings.Join(reply.Ack.Missing, ", "))
	}
	return nil
}
