package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/storypath/checkin/internal/position"
)

// wsError is written back when a position frame is rejected.
type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleSessionWS streams position frames from the device into the
// session's position feed and pushes notifications back on the same
// connection.
func handleSessionWS(broker *Broker, positions position.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Hour)
		defer cancel()

		ch := broker.Subscribe(sess.ID)
		defer broker.Unsubscribe(sess.ID, ch)

		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case data := <-ch:
					if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
						logger.Debug("websocket write failed", "error", err)
						return
					}
				}
			}
		}()

		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				logger.Debug("websocket read ended", "error", err)
				return
			}

			var req PositionRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				wsjson.Write(ctx, conn, wsError{Type: "error", Error: "invalid frame"})
				continue
			}
			rep, err := req.report()
			if err != nil {
				wsjson.Write(ctx, conn, wsError{Type: "error", Error: err.Error()})
				continue
			}
			if err := positions.Put(ctx, sess.ID, rep); err != nil {
				logger.Error("storing position", "session_id", sess.ID, "error", err)
				conn.Close(websocket.StatusInternalError, "storing position failed")
				return
			}
		}
	}
}
