// internal/handlers/room_ws.go
package handlers

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	mw "github.com/ub-detected/football-bot/internal/middleware"
)

// watchPollInterval is how often the watcher re-reads the room looking for a
// version change to push.
const watchPollInterval = time.Second

// handleRoomWatch upgrades to a WebSocket and pushes a fresh room snapshot
// whenever the room changes, starting with the current state. The socket
// closes normally when the room is deleted or the client goes away.
func (s *Server) handleRoomWatch(w http.ResponseWriter, r *http.Request) {
	id, err := roomID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.WithError(err).Warn("websocket accept failed")
		return
	}
	mw.LogWebSocketConnect(s.logger, r.RemoteAddr, r.URL.Path)
	defer c.Close(websocket.StatusInternalError, "handler finished")

	// reads are discarded; the socket is push-only
	ctx := c.CloseRead(r.Context())

	var lastVersion int64 = -1
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for {
		rm, err := s.store.RoomByID(ctx, id)
		if err != nil {
			c.Close(websocket.StatusNormalClosure, "room gone")
			mw.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, err)
			return
		}
		if rm.Version != lastVersion {
			if err := wsjson.Write(ctx, c, rm); err != nil {
				mw.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, err)
				return
			}
			lastVersion = rm.Version
		}

		select {
		case <-ctx.Done():
			mw.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, nil)
			return
		case <-ticker.C:
		}
	}
}
