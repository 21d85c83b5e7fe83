package handlers

import (
	"net/http"
)

// StagesHandler handles GET /api/stages.
type StagesHandler struct {
	Pipeline Pipeline
}

type stageInfo struct {
	Stage     string  `json:"stage"`
	Dir       string  `json:"dir"`
	Next      string  `json:"next"`
	FileCount int     `json:"file_count"`
	Threshold int     `json:"threshold"`
	Ready     bool    `json:"ready"`
	Error     *string `json:"error"`
}

// ServeHTTP lists each stage with the files currently waiting in it.
// Unreadable directories are reported per stage rather than failing the call.
func (h *StagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	statuses := h.Pipeline.Inspect()
	items := make([]stageInfo, 0, len(statuses))
	for _, st := range statuses {
		it := stageInfo{
			Stage:     st.Stage.Name,
			Dir:       st.Stage.Source,
			Next:      st.Stage.Dest,
			FileCount: st.FileCount,
			Threshold: st.Stage.Threshold,
			Ready:     st.Ready,
		}
		if st.Err != nil {
			msg := st.Err.Error()
			it.Error = &msg
		}
		items = append(items, it)
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": items})
}
