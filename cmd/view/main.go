// Interactive viewer: draws the swarm's XY slice with particles colored by
// the in-plane angle of their active force vector.
//
// Usage: go run ./cmd/view -config run.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/devitrification/hoomd-blue/config"
	"github.com/devitrification/hoomd-blue/sim"
)

const (
	windowWidth  = 900
	windowHeight = 960
	panelHeight  = 60
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Uint("seed", 0, "RNG seed override (0 = use config)")

	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	s, err := sim.New(cfg, sim.Options{Seed: uint32(*seed)})
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	rl.InitWindow(windowWidth, windowHeight, "active swarm")
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	box := s.Box()
	viewSize := float64(windowHeight - panelHeight)
	scaleX := viewSize / box.LX
	scaleY := viewSize / box.LY

	paused := false
	stepsPerFrame := float32(1)

	for !rl.WindowShouldClose() {
		if rl.IsKeyPressed(rl.KeySpace) {
			paused = !paused
		}

		if !paused {
			for i := 0; i < int(stepsPerFrame); i++ {
				if err := s.Step(); err != nil {
					slog.Error("simulation step failed", "tick", s.Tick(), "error", err)
					os.Exit(1)
				}
			}
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)

		st := s.Store()
		eng := s.Engine()
		for _, tag := range st.Tags() {
			pos, ok := st.Position(tag)
			if !ok {
				continue
			}
			state, ok := eng.StateOf(tag)
			if !ok {
				continue
			}

			x := float32((pos.X + box.LX/2) * scaleX)
			y := float32(panelHeight + (pos.Y+box.LY/2)*scaleY)

			// hue encodes the in-plane direction of the active vector
			angle := math.Atan2(state.ForceVec.Y, state.ForceVec.X)
			hue := float32(angle+math.Pi) / (2 * math.Pi) * 360
			color := rl.ColorFromHSV(hue, 0.8, 0.95)

			rl.DrawCircleV(rl.Vector2{X: x, Y: y}, 2.5, color)
			tip := rl.Vector2{
				X: x + float32(state.ForceVec.X)*6,
				Y: y + float32(state.ForceVec.Y)*6,
			}
			rl.DrawLineV(rl.Vector2{X: x, Y: y}, tip, color)
		}

		// control panel
		rl.DrawRectangle(0, 0, windowWidth, panelHeight, rl.Color{R: 20, G: 20, B: 24, A: 255})
		rl.DrawText(fmt.Sprintf("tick %d   polar order %.3f", s.Tick(), s.Order()), 10, 8, 18, rl.RayWhite)

		label := "Pause"
		if paused {
			label = "Resume"
		}
		if gui.Button(rl.Rectangle{X: 10, Y: 30, Width: 80, Height: 22}, label) {
			paused = !paused
		}

		stepsPerFrame = gui.SliderBar(
			rl.Rectangle{X: 160, Y: 30, Width: 200, Height: 22},
			"1", "20",
			stepsPerFrame, 1, 20,
		)
		rl.DrawText(fmt.Sprintf("%d steps/frame", int(stepsPerFrame)), 370, 33, 16, rl.LightGray)

		rl.EndDrawing()
	}
}
