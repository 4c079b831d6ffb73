// Package http is the local read-only status API: a small gin router the
// desktop shell polls for session, peer and presence state.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hearthchat/hearth/internal/domain"
	"github.com/hearthchat/hearth/internal/gossip"
	"github.com/hearthchat/hearth/internal/voice"
)

func SetupRouter(mgr *voice.Manager, sync *gossip.Sync) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"session": mgr.Session(),
			"link":    mgr.LinkState().String(),
			"peers":   mgr.Peers(),
		})
	})

	r.GET("/presence", func(c *gin.Context) {
		records := sync.PresenceView()
		type entry struct {
			domain.PresenceRecord
			Level string `json:"level"`
		}
		out := make([]entry, 0, len(records))
		for _, rec := range records {
			out = append(out, entry{PresenceRecord: rec, Level: rec.Level().String()})
		}
		c.JSON(http.StatusOK, gin.H{"presence": out})
	})

	r.GET("/profiles", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"profiles": sync.ProfilesView()})
	})

	log.Info().Str("module", "adapters.http").Msg("status router setup")
	return r
}
