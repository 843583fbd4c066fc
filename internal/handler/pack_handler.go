package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListPacksHandler returns the packs currently on sale.
func (h *Handler) ListPacksHandler(c *gin.Context) {
	packs, err := h.packs.ActivePacks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load packs"})
		return
	}

	out := make([]gin.H, 0, len(packs))
	for _, p := range packs {
		out = append(out, gin.H{
			"id":           p.PackID,
			"name":         p.Name,
			"description":  p.Description,
			"priceUSD":     p.PriceUSD,
			"credits":      p.Credits,
			"extraCredits": p.ExtraCredits,
		})
	}
	c.JSON(http.StatusOK, gin.H{"packs": out})
}

// RefreshPacksHandler forces a pack cache reload.
func (h *Handler) RefreshPacksHandler(c *gin.Context) {
	packs, err := h.packs.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": len(packs)})
}
