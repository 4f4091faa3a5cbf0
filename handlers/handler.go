package handlers

import (
	"github.com/example/keydash/models"
	"github.com/example/keydash/services"
	"github.com/example/keydash/usage"
)

type Handler struct {
	Store      *models.Store
	Registry   *services.Registry
	Aggregator *usage.Aggregator
}

func NewHandler(store *models.Store, registry *services.Registry, aggregator *usage.Aggregator) *Handler {
	return &Handler{
		Store:      store,
		Registry:   registry,
		Aggregator: aggregator,
	}
}
