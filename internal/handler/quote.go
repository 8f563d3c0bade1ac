package handler

import (
	"net/http"
	"strconv"
	"strings"

	"card-sniper/internal/domain"

	"github.com/gin-gonic/gin"
)

// GetQuote godoc
// @Summary      Convert a listing price
// @Description  Returns the given amount in both USD and SOL at the cached exchange rate
// @Tags         quotes
// @Produce      json
// @Param        amount    query  number  true   "Amount to convert"
// @Param        currency  query  string  false  "Source currency (SOL or USDC)"  default(SOL)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/quote [get]
func (h *Handler) GetQuote(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-quote")
	defer span.End()

	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil || amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive number"})
		return
	}

	currency := strings.ToUpper(c.DefaultQuery("currency", domain.CurrencySOL))

	usd, sol, err := h.quotes.Convert(ctx, amount, currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"amount":   amount,
		"currency": currency,
		"usd":      usd,
		"sol":      sol,
	})
}
