package entity

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/routes/apierror"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service adds entities to the store and the live index
type Service interface {
	AddEntity(ctx context.Context, descriptor models.EntityDescriptor) (*models.StoredEntity, error)
}

// Handler serves the entity routes
type Handler struct {
	svc    Service
	logger ectologger.Logger
}

func NewHandler(svc Service, logger ectologger.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register registers entity routes
func Register(g *echo.Group, h *Handler) {
	g.POST("", h.CreateEntity)
}

// CreateEntity stores a new entity and indexes it
func (h *Handler) CreateEntity(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.EntityDescriptor
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	entity, err := h.svc.AddEntity(ctx, req)
	if err != nil {
		return apierror.From(c, err)
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":   entity.ID,
		"entity_type": entity.Type,
	}).Info("Created entity")

	return c.JSON(http.StatusCreated, entity)
}
