package handlers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/blob"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// MediaHandler serves stored blobs at their public URL. A missing or wrong
// token gets the same 404 as a missing blob.
type MediaHandler struct {
	blobs blob.Store
	links *blob.Links
}

func NewMediaHandler(blobs blob.Store, links *blob.Links) *MediaHandler {
	return &MediaHandler{blobs: blobs, links: links}
}

func (h *MediaHandler) Serve(c *fiber.Ctx) error {
	path, err := url.PathUnescape(c.Params("*"))
	if err != nil || path == "" || strings.Contains(path, "..") {
		return mediaNotFound(c)
	}
	if !h.links.Verify(path, c.Query("token")) {
		return mediaNotFound(c)
	}

	obj, err := h.blobs.Open(c.UserContext(), path)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return mediaNotFound(c)
		}
		return respondError(c, "serve_media", err)
	}

	if obj.ContentType != "" {
		c.Set(fiber.HeaderContentType, obj.ContentType)
	}
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.SendStream(obj, int(obj.Size))
}

func mediaNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: true, Message: "Not found"})
}
