package game

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/writtenrealms/writtenrealms/structs"
)

func TestTriggerFiresOnFreeText(t *testing.T) {
	f := newFixture(t)
	player := f.addPlayer(t, nil)
	f.addTrigger(t, &structs.Trigger{
		Scope:      structs.ScopeRoom,
		TargetType: structs.TargetRoom,
		TargetID:   f.roomID,
		Actions:    "touch altar or touch the altar",
		Script:     "/echo -- The altar hums.",
	})

	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "touch altar", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	echoes := f.recorder.ofType("echo.success")
	if len(echoes) != 1 {
		t.Fatalf("got %d echo.success events, want 1", len(echoes))
	}
	if !strings.Contains(echoes[0].Text, "The altar hums.") {
		t.Errorf("got %q, want the altar narration", echoes[0].Text)
	}
	if events := f.recorder.ofType("system.error"); len(events) != 0 {
		t.Errorf("got unknown-command events %v alongside a fired trigger", events)
	}

	// The second alternative matches too, as does different casing.
	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "Touch The Altar", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	if echoes := f.recorder.ofType("echo.success"); len(echoes) != 2 {
		t.Fatalf("got %d echo.success events, want 2", len(echoes))
	}
}

func TestUnmatchedTextIsUnknownCommand(t *testing.T) {
	f := newFixture(t)
	player := f.addPlayer(t, nil)
	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "juggle torches", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	events := f.recorder.ofType("system.error")
	if len(events) != 1 {
		t.Fatalf("got %d system.error events, want 1", len(events))
	}
	if code := events[0].Data["code"]; code != "unknown_command" {
		t.Errorf("got code %v, want unknown_command", code)
	}
}

func TestTriggerOrderingAcrossScopes(t *testing.T) {
	f := newFixture(t)
	player := f.addPlayer(t, nil)
	f.addTrigger(t, &structs.Trigger{
		Scope:    structs.ScopeWorld,
		Actions:  "ring bell",
		Script:   "/echo -- world",
		Ordering: 1,
	})
	f.addTrigger(t, &structs.Trigger{
		Scope:      structs.ScopeRoom,
		TargetType: structs.TargetRoom,
		TargetID:   f.roomID,
		Actions:    "ring bell",
		Script:     "/echo -- room",
		Ordering:   5,
	})

	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "ring bell", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	echoes := f.recorder.ofType("echo.success")
	texts := []string{}
	for _, event := range echoes {
		texts = append(texts, event.Text)
	}
	// Room scope runs before world scope even with a larger ordering
	// value; both fire.
	if diff := cmp.Diff([]string{"room", "world"}, texts); diff != "" {
		t.Errorf("trigger run order mismatch (-want +got):\n%s", diff)
	}
}

func TestTriggerOnRoomItem(t *testing.T) {
	f := newFixture(t)
	player := f.addPlayer(t, nil)
	lever := &structs.Item{
		Id: "lever-template", WorldID: f.worldID, Name: "rusty lever", CreatedAt: structs.Now(),
	}
	if err := f.storage.SetItem(f.ctx, lever); err != nil {
		t.Fatal(err)
	}
	instance := *lever
	instance.Id = "lever-1"
	instance.RoomID = f.roomID
	instance.TemplateID = lever.Id
	if err := f.storage.SetItem(f.ctx, &instance); err != nil {
		t.Fatal(err)
	}
	// Attached to the template, resolved through the spawned instance.
	f.addTrigger(t, &structs.Trigger{
		Scope:      structs.ScopeRoom,
		TargetType: structs.TargetItem,
		TargetID:   lever.Id,
		Actions:    "pull lever",
		Script:     "/echo -- Clank.",
	})

	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "pull lever", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	if echoes := f.recorder.ofType("echo.success"); len(echoes) != 1 {
		t.Fatalf("got %d echo.success events, want 1", len(echoes))
	}
}

func TestTriggerConditionFailure(t *testing.T) {
	f := newFixture(t)
	f.addTrigger(t, &structs.Trigger{
		Scope:                structs.ScopeRoom,
		TargetType:           structs.TargetRoom,
		TargetID:             f.roomID,
		Actions:              "open vault",
		Script:               "/echo -- The vault swings open.",
		Conditions:           "builder",
		ShowDetailsOnFailure: true,
		FailureMessage:       "The vault does not budge.",
	})
	mundane := f.addPlayer(t, nil)
	builder := f.addPlayer(t, func(p *structs.Player) { p.Builder = true })

	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, mundane.Key, "open vault", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	failures := f.recorder.ofType("trigger.failure")
	if len(failures) != 1 {
		t.Fatalf("got %d trigger.failure events, want 1", len(failures))
	}
	if failures[0].Text != "The vault does not budge." {
		t.Errorf("got %q, want the authored failure message", failures[0].Text)
	}
	if events := f.recorder.ofType("system.error"); len(events) != 0 {
		t.Errorf("got unknown-command events %v, want the failure to claim the input", events)
	}
	if echoes := f.recorder.ofType("echo.success"); len(echoes) != 0 {
		t.Errorf("got %d echo.success events for a failed condition, want 0", len(echoes))
	}

	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, builder.Key, "open vault", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	if echoes := f.recorder.ofType("echo.success"); len(echoes) != 1 {
		t.Fatalf("got %d echo.success events for the builder, want 1", len(echoes))
	}
}

func TestTriggerSilentConditionFailure(t *testing.T) {
	f := newFixture(t)
	player := f.addPlayer(t, nil)
	f.addTrigger(t, &structs.Trigger{
		Scope:      structs.ScopeRoom,
		TargetType: structs.TargetRoom,
		TargetID:   f.roomID,
		Actions:    "open vault",
		Script:     "/echo -- open",
		Conditions: "builder",
	})
	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "open vault", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	// Without show-details the failure stays silent and the input
	// falls through to the unknown-command event.
	if failures := f.recorder.ofType("trigger.failure"); len(failures) != 0 {
		t.Errorf("got %d trigger.failure events, want 0", len(failures))
	}
	if events := f.recorder.ofType("system.error"); len(events) != 1 {
		t.Errorf("got %d system.error events, want 1", len(events))
	}
}

func TestTriggerGate(t *testing.T) {
	f := newFixture(t)
	player := f.addPlayer(t, nil)
	roommate := f.addPlayer(t, nil)
	f.addTrigger(t, &structs.Trigger{
		Scope:      structs.ScopeRoom,
		TargetType: structs.TargetRoom,
		TargetID:   f.roomID,
		Actions:    "strike gong",
		Script:     "/echo -- Bonnnng.",
		GateDelay:  1,
	})

	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "strike gong", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	if echoes := f.recorder.ofType("echo.success"); len(echoes) != 1 {
		t.Fatalf("got %d echo.success events, want 1", len(echoes))
	}

	// The gate is shared by everyone in the room while it holds.
	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, roommate.Key, "strike gong", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	if gated := f.recorder.ofType("trigger.gated"); len(gated) != 1 {
		t.Fatalf("got %d trigger.gated events, want 1", len(gated))
	}
	if echoes := f.recorder.ofType("echo.success"); len(echoes) != 1 {
		t.Fatalf("got %d echo.success events while gated, want 1", len(echoes))
	}

	time.Sleep(1100 * time.Millisecond)
	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "strike gong", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	if echoes := f.recorder.ofType("echo.success"); len(echoes) != 2 {
		t.Fatalf("got %d echo.success events after the gate expired, want 2", len(echoes))
	}
}

func TestGateCache(t *testing.T) {
	gate := NewGateCache()
	if !gate.TryAcquire("a", 30*time.Millisecond) {
		t.Fatal("could not acquire a free gate")
	}
	if gate.TryAcquire("a", 30*time.Millisecond) {
		t.Fatal("acquired a held gate")
	}
	if !gate.Gated("a") {
		t.Fatal("held gate reported free")
	}
	if gate.Gated("b") {
		t.Fatal("free gate reported held")
	}
	time.Sleep(50 * time.Millisecond)
	if gate.Gated("a") {
		t.Fatal("expired gate reported held")
	}
	if !gate.TryAcquire("a", 30*time.Millisecond) {
		t.Fatal("could not reacquire an expired gate")
	}
}

func TestTriggerLoopGuard(t *testing.T) {
	f := newFixture(t)
	player := f.addPlayer(t, nil)
	f.addTrigger(t, &structs.Trigger{
		Scope:      structs.ScopeRoom,
		TargetType: structs.TargetRoom,
		TargetID:   f.roomID,
		Actions:    "recurse",
		Script:     "recurse",
	})
	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "recurse", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	// The script line cannot re-enter trigger resolution, so it fails
	// as an unknown command and the failure is surfaced once.
	errors := f.recorder.ofType("trigger.error")
	if len(errors) != 1 {
		t.Fatalf("got %d trigger.error events, want 1", len(errors))
	}
}

func TestDeferredScriptSegments(t *testing.T) {
	f := newFixture(t)
	player := f.addPlayer(t, nil)
	f.addTrigger(t, &structs.Trigger{
		Scope:      structs.ScopeRoom,
		TargetType: structs.TargetRoom,
		TargetID:   f.roomID,
		Actions:    "light beacon",
		Script:     "/echo -- one && /echo -- two\n/echo -- three",
	})
	go func() {
		_ = f.game.Start(f.ctx)
	}()
	t.Cleanup(f.game.Close)

	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "light beacon", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	// The first segment runs inline, the rest on later heartbeats.
	if echoes := f.recorder.ofType("echo.success"); len(echoes) != 1 || echoes[0].Text != "one" {
		t.Fatalf("got %v, want one inline echo", echoes)
	}
	echoes := f.recorder.waitFor(t, "echo.success", 3)
	texts := []string{}
	for _, event := range echoes {
		texts = append(texts, event.Text)
	}
	if diff := cmp.Diff([]string{"one", "two", "three"}, texts); diff != "" {
		t.Errorf("segment order mismatch (-want +got):\n%s", diff)
	}
}

func TestActionLabels(t *testing.T) {
	f := newFixture(t)
	player := f.addPlayer(t, nil)
	f.addTrigger(t, &structs.Trigger{
		Scope:               structs.ScopeRoom,
		TargetType:          structs.TargetRoom,
		TargetID:            f.roomID,
		Actions:             "touch altar or caress altar",
		Script:              "/echo -- hum",
		DisplayActionInRoom: true,
	})
	f.addTrigger(t, &structs.Trigger{
		Scope:               structs.ScopeRoom,
		TargetType:          structs.TargetRoom,
		TargetID:            f.roomID,
		Actions:             "touch altar",
		Script:              "/echo -- hum again",
		DisplayActionInRoom: true,
		Ordering:            1,
	})
	f.addTrigger(t, &structs.Trigger{
		Scope:      structs.ScopeRoom,
		TargetType: structs.TargetRoom,
		TargetID:   f.roomID,
		Actions:    "hidden deed",
		Script:     "/echo -- hidden",
	})
	f.addTrigger(t, &structs.Trigger{
		Scope:               structs.ScopeRoom,
		TargetType:          structs.TargetRoom,
		TargetID:            f.roomID,
		Actions:             "builder deed",
		Script:              "/echo -- secret",
		Conditions:          "builder",
		DisplayActionInRoom: true,
		Ordering:            2,
	})

	labels, err := f.game.Triggers().ActionLabels(f.ctx, player)
	if err != nil {
		t.Fatal(err)
	}
	// Duplicate first alternatives collapse, display-disabled and
	// condition-failing triggers are skipped.
	if diff := cmp.Diff([]string{"touch altar"}, labels); diff != "" {
		t.Errorf("label mismatch (-want +got):\n%s", diff)
	}
}

func TestActionLabelsDoNotConsumeGate(t *testing.T) {
	f := newFixture(t)
	player := f.addPlayer(t, nil)
	f.addTrigger(t, &structs.Trigger{
		Scope:               structs.ScopeRoom,
		TargetType:          structs.TargetRoom,
		TargetID:            f.roomID,
		Actions:             "strike gong",
		Script:              "/echo -- Bonnnng.",
		GateDelay:           60,
		DisplayActionInRoom: true,
	})
	for i := 0; i < 2; i++ {
		labels, err := f.game.Triggers().ActionLabels(f.ctx, player)
		if err != nil {
			t.Fatal(err)
		}
		if len(labels) != 1 {
			t.Fatalf("got labels %v on pass %d, want the gong to stay listed", labels, i)
		}
	}
	if err := f.game.DispatchLine(f.ctx, structs.KindPlayer, player.Key, "strike gong", "", LineOptions{}); err != nil {
		t.Fatal(err)
	}
	if echoes := f.recorder.ofType("echo.success"); len(echoes) != 1 {
		t.Fatalf("got %d echo.success events, want the label query to leave the gate open", len(echoes))
	}
	labels, err := f.game.Triggers().ActionLabels(f.ctx, player)
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 0 {
		t.Errorf("got labels %v for a held gate, want none", labels)
	}
}
