package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/wikisync/internal/restrict"
	"github.com/roach88/wikisync/internal/wiki"
)

// maxBody caps page update requests.
const maxBody = 16 << 20

// Health handles GET /api/health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListImages handles GET /api/images
// Payloads are not included.
func (s *Server) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := s.store.ListImages(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// GetImage handles GET /api/images/{ref}
// ref is an image ID, the canonical link form, or a filename for links that
// have not been resolved yet.
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	var (
		img wiki.Image
		err error
	)
	if id, perr := strconv.ParseInt(ref, 10, 64); perr == nil {
		img, err = s.store.GetImage(r.Context(), id)
	} else {
		img, err = s.store.FindImageByFilename(r.Context(), ref)
	}
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	data, err := s.store.ReadImageData(r.Context(), img.ID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ListPages handles GET /api/pages
func (s *Server) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.store.ListPages(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	out := make([]wiki.PageSummary, len(pages))
	for i, p := range pages {
		out[i] = p.Summary()
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPage handles GET /api/pages/{id}
// With ?groups=a,b the content is masked for a viewer in those groups.
func (s *Server) GetPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pageID(w, r)
	if !ok {
		return
	}
	p, err := s.store.GetPage(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if r.URL.Query().Has("groups") {
		p.Content = restrict.MaskForViewer(p.Content, splitGroups(r.URL.Query().Get("groups")))
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePageRequest is the body of PUT /api/pages/{id}.
type UpdatePageRequest struct {
	Content       *string `json:"content"`
	EditedBy      string  `json:"edited_by,omitempty"`
	ChangeSummary string  `json:"change_summary,omitempty"`
}

// UpdatePageResponse reports the saved page, the version the save created and
// how many restricted blocks the saved content carries.
type UpdatePageResponse struct {
	Page             wiki.Page        `json:"page"`
	Version          wiki.PageVersion `json:"version"`
	RestrictedBlocks int              `json:"restricted_blocks"`
}

// UpdatePage handles PUT /api/pages/{id}
// Placeholders are resolved back to their restricted blocks before the save,
// and the save appends a version.
func (s *Server) UpdatePage(w http.ResponseWriter, r *http.Request) {
	id, ok := pageID(w, r)
	if !ok {
		return
	}

	var req UpdatePageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Content == nil {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	editor := req.EditedBy
	if editor == "" {
		editor = DefaultEditor
	}

	content := restrict.ResolveForSave(*req.Content)
	p, v, err := s.store.UpdatePageContent(r.Context(), id, content, editor, req.ChangeSummary)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	blocks := len(restrict.Blocks(p.Content))
	s.log.Info("page updated", "page_id", p.ID, "path", p.Path, "version", v.VersionNumber,
		"edited_by", editor, "restricted_blocks", blocks)
	writeJSON(w, http.StatusOK, UpdatePageResponse{Page: p, Version: v, RestrictedBlocks: blocks})
}

func pageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid page id")
		return 0, false
	}
	return id, true
}

func splitGroups(value string) []string {
	var out []string
	for _, g := range strings.Split(value, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// storeError maps store errors to responses. Unexpected errors are logged and
// reported without detail.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, wiki.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, wiki.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	default:
		s.log.Error("store error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
