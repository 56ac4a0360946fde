package handlers

import (
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/soloking1412/Unicorn-Launchpad/internal/snapshot"
)

func (h *Handlers) requireStore(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Snapshot store not configured"})
		return false
	}
	return true
}

// ListSnapshots returns the newest snapshots of a project.
func (h *Handlers) ListSnapshots(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	address, ok := addressParam(c)
	if !ok {
		return
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	snaps, err := h.store.Snapshots(c.Request.Context(), address.String(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snaps)
}

func (h *Handlers) ListMismatches(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	address, ok := addressParam(c)
	if !ok {
		return
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	out, err := h.store.Mismatches(c.Request.Context(), address.String(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) ListTracked(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	tracked, err := h.store.TrackedProjects(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tracked)
}

// Track asks the worker to snapshot a project. With a queue configured the
// request is published and answered 202; otherwise it is stored directly.
func (h *Handlers) Track(c *gin.Context) {
	var req TrackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := solana.PublicKeyFromBase58(req.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address format"})
		return
	}

	if h.publisher != nil && h.opts.TrackQueue != "" {
		msg := snapshot.TrackRequest{Address: req.Address, Label: req.Label}
		if err := h.publisher.Publish(c.Request.Context(), h.opts.TrackQueue, msg); err != nil {
			h.log.WithError(err).Error("Failed to publish track request")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to queue track request"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "address": req.Address})
		return
	}

	if !h.requireStore(c) {
		return
	}
	tp, err := h.store.Track(c.Request.Context(), req.Address, req.Label)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, tp)
}
