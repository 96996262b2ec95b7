package events

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler subscribes a websocket client to the hub until it disconnects.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Debug().Err(err).Msg("[ws] upgrade failed")
			return
		}

		// The welcome goes out before the client is shared with broadcasters.
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"action":"welcome","transport":"websocket"}`+"\n"))
		hub.AddWS(ws)
		hub.log.Info().Str("remote", c.Request.RemoteAddr).Msg("[ws] client connected")

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		hub.log.Info().Str("remote", c.Request.RemoteAddr).Msg("[ws] client disconnected")
	}
}
