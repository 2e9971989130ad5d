package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/shottracker/shottracker/internal/dispatcher"
	"github.com/shottracker/shottracker/internal/reticle"
	"github.com/shottracker/shottracker/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialAim(t *testing.T, f *fixture) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/aim"
	conn, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// exchange sends one message and reads the reply.
func exchange(t *testing.T, conn *ws.Conn, msgType string, payload any) streaming.Envelope {
	t.Helper()
	data, err := streaming.Marshal(msgType, payload)
	require.NoError(t, err)
	return exchangeRaw(t, conn, data)
}

func exchangeRaw(t *testing.T, conn *ws.Conn, data []byte) streaming.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))
	var env streaming.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func payloadOf[T any](t *testing.T, env streaming.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

func TestAimStream_BuildsUpToSolution(t *testing.T) {
	f := newFixture(t)
	conn := dialAim(t, f)

	env := exchange(t, conn, streaming.TypeConditions, streaming.ConditionsPayload{
		Rifle:         &testRifle,
		DistanceYards: 300,
		WindSpeedMPH:  10,
	})
	require.Equal(t, streaming.TypeAck, env.Type)
	ack := payloadOf[streaming.AckPayload](t, env)
	assert.Equal(t, streaming.TypeConditions, ack.For)
	assert.Equal(t, []string{"heading", "wind"}, ack.Missing)

	env = exchange(t, conn, streaming.TypeHeading, streaming.BearingPayload{Bearing: 350})
	require.Equal(t, streaming.TypeAck, env.Type)
	assert.Equal(t, []string{"wind"}, payloadOf[streaming.AckPayload](t, env).Missing)

	env = exchange(t, conn, streaming.TypeWind, streaming.BearingPayload{Bearing: 80})
	require.Equal(t, streaming.TypeSolution, env.Type)
	sol := payloadOf[streaming.SolutionPayload](t, env)
	assert.Equal(t, 90.0, sol.WindAngle)
	assert.Equal(t, "full value", sol.WindCategory)
	assert.Equal(t, 300.0, sol.Result.DistanceYards)
	assert.Greater(t, sol.Result.DriftMOA, 0.0)
	assert.Contains(t, sol.DropText, "MOA")
	assert.Contains(t, sol.DriftText, "LEFT")

	var layout reticle.Layout
	require.NoError(t, json.Unmarshal(sol.Layout, &layout))
	assert.Equal(t, sol.DropText, layout.DropLabel)
	assert.Less(t, layout.MarkerX, 0.0)
}

func TestAimStream_ManualAngleOverridesBearings(t *testing.T) {
	f := newFixture(t)
	conn := dialAim(t, f)

	exchange(t, conn, streaming.TypeConditions, streaming.ConditionsPayload{Rifle: &testRifle, DistanceYards: 400, WindSpeedMPH: 10})

	angle := 30.0
	env := exchange(t, conn, streaming.TypeManualAngle, streaming.ManualAnglePayload{Angle: &angle})
	require.Equal(t, streaming.TypeSolution, env.Type)
	assert.Equal(t, 30.0, payloadOf[streaming.SolutionPayload](t, env).WindAngle)

	exchange(t, conn, streaming.TypeHeading, streaming.BearingPayload{Bearing: 0})
	env = exchange(t, conn, streaming.TypeWind, streaming.BearingPayload{Bearing: 180})
	require.Equal(t, streaming.TypeSolution, env.Type)
	assert.Equal(t, 30.0, payloadOf[streaming.SolutionPayload](t, env).WindAngle)

	// clearing the manual angle falls back to the bearings
	env = exchange(t, conn, streaming.TypeManualAngle, streaming.ManualAnglePayload{})
	require.Equal(t, streaming.TypeSolution, env.Type)
	sol := payloadOf[streaming.SolutionPayload](t, env)
	assert.Equal(t, 180.0, sol.WindAngle)
	assert.Equal(t, "head/tail", sol.WindCategory)
}

func TestAimStream_RifleByID(t *testing.T) {
	f := newFixture(t)
	rifle, err := f.backend.AddRifle(context.Background(), testRifle)
	require.NoError(t, err)
	conn := dialAim(t, f)

	angle := 90.0
	exchange(t, conn, streaming.TypeManualAngle, streaming.ManualAnglePayload{Angle: &angle})
	env := exchange(t, conn, streaming.TypeConditions, streaming.ConditionsPayload{RifleID: rifle.ID, DistanceYards: 200, WindSpeedMPH: 5})
	require.Equal(t, streaming.TypeSolution, env.Type)

	// the same solution twice is recorded once
	exchange(t, conn, streaming.TypeConditions, streaming.ConditionsPayload{DistanceYards: 200, WindSpeedMPH: 5})

	f.flushRecorded(t, 1)
	shots, err := f.backend.RecentShots(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	assert.Equal(t, rifle.ID, shots[0].RifleID)
	assert.Equal(t, SourceStream, shots[0].Source)
	assert.Equal(t, 90.0, shots[0].Request.WindAngleDeg)
}

func TestAimStream_Positions(t *testing.T) {
	f := newFixture(t)
	conn := dialAim(t, f)

	exchange(t, conn, streaming.TypeConditions, streaming.ConditionsPayload{Rifle: &testRifle, WindSpeedMPH: 10})
	exchange(t, conn, streaming.TypeWind, streaming.BearingPayload{Bearing: 90})

	// target due north, about 1217 yards away
	env := exchange(t, conn, streaming.TypePositions, streaming.PositionsPayload{Shooter: "0,0", Target: "0.01,0"})
	require.Equal(t, streaming.TypeSolution, env.Type, string(env.Payload))
	sol := payloadOf[streaming.SolutionPayload](t, env)
	assert.Equal(t, 90.0, sol.WindAngle)
	assert.InDelta(t, 1217, sol.Result.DistanceYards, 5)
}

func TestAimStream_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		forType string
		message string
	}{
		{"not json", `hello`, "", "invalid message"},
		{"unknown type", `{"type":"fire"}`, "fire", "unknown message type"},
		{"internal event type", `{"type":"record_shot","payload":{}}`, "record_shot", "unknown message type"},
		{"bad payload", `{"type":"heading","payload":{"bearing":"north"}}`, "heading", "invalid heading payload"},
		{"unknown rifle", `{"type":"conditions","payload":{"rifle_id":"nope","distance_yards":100}}`, "conditions", "rifle not found"},
		{"negative distance", `{"type":"conditions","payload":{"distance_yards":-1}}`, "conditions", "must not be negative"},
		{"bad position", `{"type":"positions","payload":{"shooter":"0,0","target":"north"}}`, "positions", "target"},
	}

	f := newFixture(t)
	conn := dialAim(t, f)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := exchangeRaw(t, conn, []byte(tt.raw))
			require.Equal(t, streaming.TypeError, env.Type)
			p := payloadOf[streaming.ErrorPayload](t, env)
			assert.Equal(t, tt.forType, p.For)
			assert.Contains(t, p.Message, tt.message)
		})
	}

	// the connection survives rejected messages
	env := exchange(t, conn, streaming.TypeHeading, streaming.BearingPayload{Bearing: 10})
	assert.Equal(t, streaming.TypeAck, env.Type)
}

func TestAimStream_SessionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	a := dialAim(t, f)
	b := dialAim(t, f)

	angle := 45.0
	exchange(t, a, streaming.TypeManualAngle, streaming.ManualAnglePayload{Angle: &angle})
	env := exchange(t, a, streaming.TypeConditions, streaming.ConditionsPayload{Rifle: &testRifle, DistanceYards: 300, WindSpeedMPH: 10})
	require.Equal(t, streaming.TypeSolution, env.Type)

	env = exchange(t, b, streaming.TypeConditions, streaming.ConditionsPayload{Rifle: &testRifle, DistanceYards: 300, WindSpeedMPH: 10})
	require.Equal(t, streaming.TypeAck, env.Type)
	assert.Equal(t, []string{"heading", "wind"}, payloadOf[streaming.AckPayload](t, env).Missing)
}

func TestStreamHandler_WithoutSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.srv.onHeading(dispatcher.Event{Type: streaming.TypeHeading, Context: context.Background()})
	assert.ErrorIs(t, err, errNoSession)
}

func TestUpgradeRequired(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/ws/aim", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
