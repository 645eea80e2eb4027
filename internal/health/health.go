// Package health exposes the bridge process's internal readiness surface: a liveness check, a readiness check
// gated on the Bridge Core, and a debug endpoint listing registered Spaces. None of this is part of the
// cross-platform relay itself; it exists so an operator or orchestrator can probe one running process.
package health

import (
	"github.com/gofiber/fiber/v3"

	"github.com/beaconbridge/beacon/internal/bridge"
	"github.com/beaconbridge/beacon/internal/driver"
	"github.com/beaconbridge/beacon/internal/space"
)

// Handler serves the internal health/readiness/debug routes.
type Handler struct {
	Core    *bridge.Core
	Drivers *driver.Registry
	Spaces  *space.Registry
}

// Register mounts the handler's routes onto app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/healthz", h.Healthz)
	app.Get("/readyz", h.Readyz)
	app.Get("/debug/spaces", h.DebugSpaces)
}

// Healthz reports only that the process is up; it never checks Core readiness, so a liveness probe does not
// restart a bridge that is still loading its Space document or waiting on a driver to connect.
func (h *Handler) Healthz(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readyz reports whether the Bridge Core has finished loading its persisted state and every reserved driver has
// registered (§4.1 "Initialization").
func (h *Handler) Readyz(c fiber.Ctx) error {
	ready := h.Core.Ready()
	platforms := make([]string, 0, len(h.Drivers.All()))
	for _, d := range h.Drivers.All() {
		platforms = append(platforms, d.Platform())
	}

	status := fiber.StatusOK
	if !ready {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"ready":     ready,
		"platforms": platforms,
	})
}

// DebugSpaces lists every registered Space's id, name, and member count. It is intentionally unauthenticated
// within this process's own internal bind address (§9 "single trusted operator"); do not expose HealthAddr
// publicly.
func (h *Handler) DebugSpaces(c fiber.Ctx) error {
	spaces := h.Spaces.All()
	out := make([]fiber.Map, 0, len(spaces))
	for _, sp := range spaces {
		out = append(out, fiber.Map{
			"id":      sp.ID,
			"name":    sp.Name,
			"private": sp.Options.Private,
			"nsfw":    sp.Options.NSFW,
			"members": len(sp.Members()),
		})
	}
	return c.JSON(fiber.Map{"spaces": out})
}
