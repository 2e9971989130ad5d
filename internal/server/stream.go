package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/shottracker/shottracker/internal/aim"
	"github.com/shottracker/shottracker/internal/dispatcher"
	"github.com/shottracker/shottracker/internal/geo"
	"github.com/shottracker/shottracker/pkg/core"
	"github.com/shottracker/shottracker/pkg/streaming"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
)

// errNoSession means a stream handler ran outside an aim connection.
var errNoSession = errors.New("no aim session in context")

// streamTypes are the only event types a client may send over the stream.
var streamTypes = map[string]bool{
	streaming.TypeConditions:  true,
	streaming.TypeHeading:     true,
	streaming.TypeWind:        true,
	streaming.TypeManualAngle: true,
	streaming.TypePositions:   true,
}

// session is the per-connection aim state. It is only touched by the
// connection's reader goroutine.
type session struct {
	conds        aim.Conditions
	rifleID      string
	lastRecorded *core.ShotResult
}

type sessionKey struct{}

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) (*session, error) {
	s, ok := ctx.Value(sessionKey{}).(*session)
	if !ok || s == nil {
		return nil, errNoSession
	}
	return s, nil
}

func (s *Server) registerStreamHandlers() {
	s.dispatch.Register(streaming.TypeConditions, s.onConditions, dispatcher.Logged())
	s.dispatch.Register(streaming.TypeHeading, s.onHeading, dispatcher.Logged())
	s.dispatch.Register(streaming.TypeWind, s.onWind, dispatcher.Logged())
	s.dispatch.Register(streaming.TypeManualAngle, s.onManualAngle, dispatcher.Logged())
	s.dispatch.Register(streaming.TypePositions, s.onPositions, dispatcher.Logged())
}

func (s *Server) handleAimStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WarnContext(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := withSession(r.Context(), &session{})
	s.sessions.Add(ctx, 1)
	defer s.sessions.Add(ctx, -1)
	s.log.InfoContext(ctx, "Aim stream opened", "remote", r.RemoteAddr)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go pingLoop(conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				s.log.WarnContext(ctx, "Aim stream read error", "error", err)
			}
			s.log.InfoContext(ctx, "Aim stream closed")
			return
		}

		reply := s.handleStreamMessage(ctx, data)
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			s.log.WarnContext(ctx, "WebSocket SetWriteDeadline error", "error", err)
			return
		}
		if err := conn.WriteJSON(reply); err != nil {
			s.log.WarnContext(ctx, "WebSocket write error", "error", err)
			return
		}
	}
}

// pingLoop keeps the connection alive. WriteControl may run concurrently
// with the reader's writes.
func pingLoop(conn *ws.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// handleStreamMessage decodes one client message, dispatches it and returns
// the envelope to send back.
func (s *Server) handleStreamMessage(ctx context.Context, data []byte) streaming.Envelope {
	var env streaming.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errorEnvelope("", fmt.Sprintf("invalid message: %v", err))
	}
	if !streamTypes[env.Type] {
		return errorEnvelope(env.Type, fmt.Sprintf("unknown message type: %s", env.Type))
	}

	result, err := s.dispatch.Dispatch(dispatcher.Event{
		Type:    env.Type,
		Payload: env.Payload,
		Context: ctx,
	})
	if err != nil {
		return errorEnvelope(env.Type, err.Error())
	}
	reply, ok := result.(streaming.Envelope)
	if !ok {
		return errorEnvelope(env.Type, "no reply")
	}
	return reply
}

func errorEnvelope(forType, msg string) streaming.Envelope {
	env, _ := streaming.NewEnvelope(streaming.TypeError, streaming.ErrorPayload{For: forType, Message: msg})
	return env
}

// onConditions sets distance and wind speed. The rifle is replaced only when
// the message names one, so a session can change range without resending it.
func (s *Server) onConditions(e dispatcher.Event) (any, error) {
	sess, err := sessionFrom(e.Ctx())
	if err != nil {
		return nil, err
	}
	var p streaming.ConditionsPayload
	if err := e.Decode(&p); err != nil {
		return nil, err
	}
	if p.DistanceYards < 0 || p.WindSpeedMPH < 0 {
		return nil, errors.New("distance_yards and wind_speed_mph must not be negative")
	}

	switch {
	case p.Rifle != nil:
		sess.conds.Rifle = *p.Rifle
		sess.rifleID = ""
	case p.RifleID != "":
		rifle, err := s.backend.GetRifle(e.Ctx(), p.RifleID)
		if err != nil {
			return nil, fmt.Errorf("rifle %s: %w", p.RifleID, err)
		}
		sess.conds.Rifle = rifle.RifleProfile
		sess.rifleID = rifle.ID
	}
	sess.conds.DistanceYards = p.DistanceYards
	sess.conds.WindSpeedMPH = p.WindSpeedMPH

	return s.reply(e, sess)
}

func (s *Server) onHeading(e dispatcher.Event) (any, error) {
	return s.onBearing(e, func(sess *session, b core.Bearing) { sess.conds.Shooting = &b })
}

func (s *Server) onWind(e dispatcher.Event) (any, error) {
	return s.onBearing(e, func(sess *session, b core.Bearing) { sess.conds.Wind = &b })
}

func (s *Server) onBearing(e dispatcher.Event, set func(*session, core.Bearing)) (any, error) {
	sess, err := sessionFrom(e.Ctx())
	if err != nil {
		return nil, err
	}
	var p streaming.BearingPayload
	if err := e.Decode(&p); err != nil {
		return nil, err
	}
	set(sess, core.Bearing(p.Bearing))
	return s.reply(e, sess)
}

func (s *Server) onManualAngle(e dispatcher.Event) (any, error) {
	sess, err := sessionFrom(e.Ctx())
	if err != nil {
		return nil, err
	}
	var p streaming.ManualAnglePayload
	if err := e.Decode(&p); err != nil {
		return nil, err
	}
	sess.conds.ManualAngle = p.Angle
	return s.reply(e, sess)
}

// onPositions derives the shooting bearing and the range from two GPS fixes.
func (s *Server) onPositions(e dispatcher.Event) (any, error) {
	sess, err := sessionFrom(e.Ctx())
	if err != nil {
		return nil, err
	}
	var p streaming.PositionsPayload
	if err := e.Decode(&p); err != nil {
		return nil, err
	}
	shooter, err := geo.ParseLatLon(p.Shooter)
	if err != nil {
		return nil, fmt.Errorf("shooter: %w", err)
	}
	target, err := geo.ParseLatLon(p.Target)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	bearing, yards, err := geo.ShotLine(shooter, target)
	if err != nil {
		return nil, err
	}
	sess.conds.Shooting = &bearing
	sess.conds.DistanceYards = yards
	return s.reply(e, sess)
}

// reply solves the session if it has enough state, otherwise acks with what
// is still missing.
func (s *Server) reply(e dispatcher.Event, sess *session) (streaming.Envelope, error) {
	if missing := sess.conds.Missing(); len(missing) > 0 {
		return streaming.NewEnvelope(streaming.TypeAck, streaming.AckPayload{For: e.Type, Missing: missing})
	}

	sol, err := s.solver.Solve(e.Ctx(), sess.conds)
	if err != nil {
		return streaming.Envelope{}, err
	}

	if sess.lastRecorded == nil || *sess.lastRecorded != sol.Result {
		res := sol.Result
		sess.lastRecorded = &res
		s.record(e.Ctx(), core.ShotRecord{
			RifleID: sess.rifleID,
			Request: core.ShotRequest{
				DistanceYards: sess.conds.DistanceYards,
				WindSpeedMPH:  sess.conds.WindSpeedMPH,
				WindAngleDeg:  sol.WindAngle,
				Rifle:         sess.conds.Rifle,
			},
			Result:  sol.Result,
			Clamped: sol.Layout.Clamped,
			Source:  SourceStream,
		})
	}

	layout, err := json.Marshal(sol.Layout)
	if err != nil {
		return streaming.Envelope{}, fmt.Errorf("marshal layout: %w", err)
	}
	return streaming.NewEnvelope(streaming.TypeSolution, streaming.SolutionPayload{
		WindAngle:    sol.WindAngle,
		WindCategory: sol.WindCategory.String(),
		Result:       sol.Result,
		Layout:       layout,
		DropText:     sol.DropText,
		DriftText:    sol.DriftText,
	})
}
