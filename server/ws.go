package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"storyreel/core/jobs"
	"storyreel/logger"
	"storyreel/model"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// JobProgressWS streams status updates for one job. The current status is
// sent first.
// URL: GET /api/jobs/{id}/ws
func (h *APIHandler) JobProgressWS(w http.ResponseWriter, r *http.Request) {
	if h.opts.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live progress is not available")
		return
	}
	id := mux.Vars(r)["id"]
	status, err := h.opts.Jobs.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err), logger.String("jobId", id))
		return
	}

	client := jobs.NewClient(h.opts.Hub, conn, id)
	h.opts.Hub.Register(client, status)

	go client.WritePump()
	go client.ReadPump()
}
