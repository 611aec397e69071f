package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"coverage-service/internal/models"
	"coverage-service/internal/services"
	"coverage-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type RegionHandler struct {
	regionService *services.RegionService
	importService *services.ImportService
}

func NewRegionHandler(regionService *services.RegionService, importService *services.ImportService) *RegionHandler {
	return &RegionHandler{
		regionService: regionService,
		importService: importService,
	}
}

func (h *RegionHandler) RegisterRoutes(app *fiber.App) {
	gr := app.Group("coverage/public/api/v1")

	gr.Get("/regions", h.ListRegions)                     // GET /regions?skip=&limit=&status= - paged FeatureCollection
	gr.Get("/regions/geojson", h.ListRegionsGeoJSON)      // GET /regions/geojson?status= - full FeatureCollection
	gr.Get("/regions/name/:name", h.GetRegionByName)      // GET /regions/name/{name} - fuzzy lookup, first match
	gr.Get("/regions/coverage/:name", h.GetCoverage)      // GET /regions/coverage/{name} - coverage summary
	gr.Get("/regions/:id", h.GetRegionByID)               // GET /regions/{id}
	gr.Get("/regions/:id/geojson", h.GetRegionByID)       // GET /regions/{id}/geojson
	gr.Post("/regions", h.CreateRegion)                   // POST /regions - create one region (admin)
	gr.Post("/regions/import", h.ImportRegions)           // POST /regions/import - bulk GeoJSON import
	gr.Delete("/regions/:id", h.DeleteRegion)             // DELETE /regions/{id} (admin)
}

// ListRegions returns regions as a GeoJSON FeatureCollection. The body is
// the collection itself, not the response envelope, so it stays a valid
// GeoJSON document for map clients.
func (h *RegionHandler) ListRegions(c fiber.Ctx) error {
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 0)
	status := c.Query("status")

	collection, err := h.regionService.ListRegions(c.Context(), status, skip, limit)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(collection)
}

func (h *RegionHandler) ListRegionsGeoJSON(c fiber.Ctx) error {
	collection, err := h.regionService.ListRegionsGeoJSON(c.Context(), c.Query("status"))
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(collection)
}

func (h *RegionHandler) GetRegionByID(c fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "region id must be an integer"))
	}

	feature, err := h.regionService.GetRegionByID(c.Context(), id)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(feature)
}

func (h *RegionHandler) GetRegionByName(c fiber.Ctx) error {
	feature, err := h.regionService.GetRegionByName(c.Context(), c.Params("name"))
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(feature)
}

func (h *RegionHandler) GetCoverage(c fiber.Ctx) error {
	coverage, err := h.regionService.GetCoverage(c.Context(), c.Params("name"))
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(coverage))
}

// CreateRegion stores one region posted as a GeoJSON feature.
func (h *RegionHandler) CreateRegion(c fiber.Ctx) error {
	var feature models.Feature
	if err := c.Bind().Body(&feature); err != nil {
		slog.Error("error parsing feature", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	created, err := h.regionService.CreateRegion(c.Context(), &feature)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.CreateSuccessResponse(created))
}

// DeleteRegion removes a region by ID.
func (h *RegionHandler) DeleteRegion(c fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "region id must be an integer"))
	}

	if err := h.regionService.DeleteRegion(id); err != nil {
		return h.renderError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(fiber.Map{"deleted": id}))
}

// ImportRegions runs a bulk import of the posted FeatureCollection. The
// batch is all-or-nothing: on any fatal validation error nothing persists.
func (h *RegionHandler) ImportRegions(c fiber.Ctx) error {
	var collection models.FeatureCollection
	if err := c.Bind().Body(&collection); err != nil {
		slog.Error("error parsing feature collection", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}
	if collection.Type != models.FeatureCollectionType {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "body must be a FeatureCollection"))
	}

	summary, err := h.importService.ImportFeatureCollection(c.Context(), &collection)
	if err != nil {
		slog.Error("import batch failed", "batch_id", summary.BatchID, "error", err)
		return h.renderError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(utils.CreateSuccessResponse(summary))
}

func (h *RegionHandler) renderError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrRegionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(utils.CreateErrorResponse("REGION_NOT_FOUND", "Region not found"))
	case errors.Is(err, models.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_STATUS", err.Error()))
	case errors.Is(err, models.ErrInvalidGeometry):
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_GEOMETRY", err.Error()))
	case errors.Is(err, models.ErrMissingRequiredField):
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("MISSING_REQUIRED_FIELD", err.Error()))
	case errors.Is(err, models.ErrMalformedFeature):
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("MALFORMED_FEATURE", err.Error()))
	case errors.Is(err, models.ErrDuplicateName):
		return c.Status(fiber.StatusConflict).JSON(utils.CreateErrorResponse("DUPLICATE_NAME", err.Error()))
	default:
		slog.Error("internal error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(utils.CreateErrorResponse("INTERNAL_SERVER_ERROR", err.Error()))
	}
}

func queryInt(c fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
