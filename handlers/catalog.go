package handlers

import (
	"net/http"

	"vmget/catalog"
	"vmget/store"
)

// OSSummary is the catalog listing entry
type OSSummary struct {
	Name       string `json:"name"`
	PrettyName string `json:"pretty_name"`
	Homepage   string `json:"homepage,omitempty"`
	Configs    int    `json:"configs"`
}

// ListOS returns the catalog. Full release lists are included when the
// request asks for ?full=1.
func (h *Handlers) ListOS(w http.ResponseWriter, r *http.Request) {
	list, err := h.sessions().Catalog(r.Context())
	if err != nil {
		SendError(w, r, h.logger, WrapError(err))
		return
	}

	if queryFlag(r, "full") {
		writeJSON(w, h.logger, http.StatusOK, list)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, summarize(list))
}

func summarize(list []catalog.OS) []OSSummary {
	out := make([]OSSummary, 0, len(list))
	for _, os := range list {
		out = append(out, OSSummary{
			Name:       os.Name,
			PrettyName: os.PrettyName,
			Homepage:   os.Homepage,
			Configs:    len(os.Releases),
		})
	}
	return out
}

// History returns persisted session records, newest first
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.sessions().History(r.Context())
	if err != nil {
		SendError(w, r, h.logger, WrapError(err))
		return
	}
	if records == nil {
		records = []*store.SessionRecord{}
	}
	SetNoCacheHeaders(w)
	writeJSON(w, h.logger, http.StatusOK, records)
}

// Configs returns the known VM configs and the default directory
func (h *Handlers) Configs(w http.ResponseWriter, r *http.Request) {
	settings, err := h.sessions().Settings(r.Context())
	if err != nil {
		SendError(w, r, h.logger, WrapError(err))
		return
	}
	if settings.KnownConfigs == nil {
		settings.KnownConfigs = []string{}
	}
	SetNoCacheHeaders(w)
	writeJSON(w, h.logger, http.StatusOK, settings)
}
