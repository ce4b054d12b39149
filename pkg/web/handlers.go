// Package web exposes the triggerer's status API: active trigger runs,
// registered trigger types and persisted triggers.
package web

import (
	"errors"
	"sort"

	"github.com/gofiber/fiber/v3"

	"github.com/lodeflow/sentinel/pkg/deferral"
	"github.com/lodeflow/sentinel/pkg/persistence"
	"github.com/lodeflow/sentinel/pkg/registry"
)

type APIHandlers struct {
	runner   *deferral.Runner
	registry *registry.Registry
	store    persistence.TriggerStore
}

func NewAPIHandlers(runner *deferral.Runner, reg *registry.Registry, store persistence.TriggerStore) *APIHandlers {
	return &APIHandlers{
		runner:   runner,
		registry: reg,
		store:    store,
	}
}

func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.GetHealth)
	app.Get("/triggers", h.GetActiveTriggers)
	app.Get("/triggers/types", h.GetTriggerTypes)
	app.Get("/triggers/persisted", h.GetPersistedTriggers)
	app.Get("/triggers/persisted/:id", h.GetPersistedTrigger)
}

func (h *APIHandlers) GetHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":          "ok",
		"active_triggers": len(h.runner.Active()),
	})
}

func (h *APIHandlers) GetActiveTriggers(c fiber.Ctx) error {
	active := h.runner.Active()

	sort.Slice(active, func(i, j int) bool {
		return active[i].SensorID < active[j].SensorID
	})

	return c.JSON(fiber.Map{
		"triggers":    active,
		"total_count": len(active),
	})
}

func (h *APIHandlers) GetTriggerTypes(c fiber.Ctx) error {
	types := h.registry.TriggerTypes()
	sort.Strings(types)

	return c.JSON(fiber.Map{"types": types})
}

func (h *APIHandlers) GetPersistedTriggers(c fiber.Ctx) error {
	if h.store == nil {
		return c.JSON(fiber.Map{"triggers": []persistence.TriggerSpec{}, "total_count": 0})
	}

	specs, err := h.store.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"triggers":    specs,
		"total_count": len(specs),
	})
}

func (h *APIHandlers) GetPersistedTrigger(c fiber.Ctx) error {
	if h.store == nil {
		return notFound(c, "trigger store not configured")
	}

	spec, err := h.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, persistence.ErrTriggerNotFound) {
			return notFound(c, "trigger not found")
		}

		return internalError(c, err)
	}

	return c.JSON(spec)
}
