package handlers

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	"slideflow/services/playlist"
)

const (
	maxThumbnailWidth  = 1024
	maxProxyBodyBytes  = 64 << 20
	sniffBufferBytes   = 3072
	proxyClientTimeout = 30 * time.Second
)

// MediaHandler proxies playlist media so the frontend never talks to the
// provider's CDN directly. Only URLs present in the current snapshot are
// fetched; anything else is refused.
type MediaHandler struct {
	poller *playlist.Poller
	client *http.Client
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(poller *playlist.Poller) *MediaHandler {
	return &MediaHandler{
		poller: poller,
		client: &http.Client{Timeout: proxyClientTimeout},
	}
}

// Proxy streams one media URL. With ?width=N on an image it serves a
// downscaled JPEG thumbnail instead of the original bytes.
func (h *MediaHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	if !h.isPlaylistURL(rawURL) {
		writeError(w, http.StatusForbidden, "url is not part of the current playlist")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	resp, err := h.client.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream fetch failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusBadGateway, "upstream returned "+resp.Status)
		return
	}

	body := io.LimitReader(resp.Body, maxProxyBodyBytes)

	// Sniff the real content type instead of trusting the upstream header;
	// CDNs routinely serve images as application/octet-stream.
	head := make([]byte, sniffBufferBytes)
	n, _ := io.ReadFull(body, head)
	head = head[:n]
	contentType := mimetype.Detect(head).String()

	if width := thumbnailWidth(r); width > 0 && isRenderableImage(contentType) {
		h.serveThumbnail(w, io.MultiReader(bytes.NewReader(head), body), width)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(head); err != nil {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("[media] proxy stream interrupted: %v", err)
	}
}

// serveThumbnail decodes, downscales and re-encodes an image as JPEG.
func (h *MediaHandler) serveThumbnail(w http.ResponseWriter, r io.Reader, width int) {
	src, _, err := image.Decode(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "failed to decode image")
		return
	}

	bounds := src.Bounds()
	if bounds.Dx() > width {
		height := bounds.Dy() * width / bounds.Dx()
		if height < 1 {
			height = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := jpeg.Encode(w, src, &jpeg.Options{Quality: 85}); err != nil {
		log.Printf("[media] thumbnail encode failed: %v", err)
	}
}

// isPlaylistURL reports whether rawURL appears in the current snapshot.
func (h *MediaHandler) isPlaylistURL(rawURL string) bool {
	for _, item := range h.poller.Snapshot().Items {
		if rawURL == item.URL || rawURL == item.VideoURL || rawURL == item.ThumbnailURL {
			return true
		}
	}
	return false
}

func thumbnailWidth(r *http.Request) int {
	raw := r.URL.Query().Get("width")
	if raw == "" {
		return 0
	}
	width, err := strconv.Atoi(raw)
	if err != nil || width <= 0 {
		return 0
	}
	if width > maxThumbnailWidth {
		width = maxThumbnailWidth
	}
	return width
}

func isRenderableImage(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif":
		return true
	}
	return false
}
