package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"card-sniper/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetListings godoc
// @Summary      List live listings
// @Description  Returns live listings, newest first, optionally filtered by deal tier
// @Tags         listings
// @Produce      json
// @Param        tier   query  string  false  "Deal tier (AUTOBUY, GOOD, OK, SKIP, NEW, ERROR)"
// @Param        limit  query  int     false  "Number of listings (default 50, max 200)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/listings [get]
func (h *Handler) GetListings(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-listings")
	defer span.End()

	tier := domain.Tier(strings.ToUpper(c.Query("tier")))
	if tier != "" && !tier.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported tier: " + string(tier)})
		return
	}
	span.SetAttributes(attribute.String("tier", string(tier)))

	limit := 50
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	listings, err := h.listings.GetActive(ctx, tier, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":     tier,
		"listings": listings,
	})
}

// GetListing godoc
// @Summary      Get one listing by token mint
// @Description  Returns the stored listing record for an on-chain token address
// @Tags         listings
// @Produce      json
// @Param        mint  path  string  true  "Token mint address"
// @Success      200  {object}  domain.Listing
// @Failure      404  {object}  map[string]string
// @Router       /api/listings/{mint} [get]
func (h *Handler) GetListing(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-listing")
	defer span.End()

	mint := c.Param("mint")
	span.SetAttributes(attribute.String("mint", mint))

	l, err := h.listings.GetByMint(ctx, mint)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no listing for mint " + mint})
		return
	}

	c.JSON(http.StatusOK, l)
}

// RecheckListing godoc
// @Summary      Force re-analysis of one listing
// @Description  Re-fetches the valuation and reclassifies the listing, alerts enabled
// @Tags         listings
// @Produce      json
// @Param        mint  path  string  true  "Token mint address"
// @Success      200  {object}  domain.Listing
// @Failure      500  {object}  map[string]string
// @Router       /api/listings/{mint}/recheck [post]
func (h *Handler) RecheckListing(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.recheck-listing")
	defer span.End()

	mint := c.Param("mint")
	span.SetAttributes(attribute.String("mint", mint))

	l, err := h.listings.Recheck(ctx, mint)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, l)
}

// TriggerSkipRecheck godoc
// @Summary      Re-analyze stale skipped listings
// @Description  Runs one pass over live SKIP listings whose analysis is older than the given age
// @Tags         listings
// @Produce      json
// @Param        hours  query  int  false  "Minimum analysis age in hours"  default(24)
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/recheck-skipped [post]
func (h *Handler) TriggerSkipRecheck(c *gin.Context) {
	if h.syncer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-skip-recheck")
	defer span.End()

	hours := 24
	if q := c.Query("hours"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			hours = n
		}
	}

	n, err := h.syncer.RecheckSkipped(ctx, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"rechecked": n,
	})
}
