package cmd

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/zijiren233/livepush/cmd/flags"
	"github.com/zijiren233/livepush/push"
	"github.com/zijiren233/livepush/utils"
)

// serveStats exposes prometheus metrics and the live session table. It is
// best effort: a listen failure logs and returns, the push keeps running.
func serveStats(listen string) {
	if flags.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	e := gin.Default()
	utils.Cors(e)

	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/sessions", func(c *gin.Context) {
		type sessionStat struct {
			Name  string `json:"name"`
			URL   string `json:"url"`
			State string `json:"state"`
		}
		stats := []sessionStat{}
		manager.Range(func(name string, s *push.Session) bool {
			stats = append(stats, sessionStat{
				Name:  name,
				URL:   s.URL(),
				State: s.State().String(),
			})
			return true
		})
		c.JSON(http.StatusOK, stats)
	})

	if err := http.ListenAndServe(listen, e.Handler()); err != nil {
		logrus.WithError(err).Error("stats server stopped")
	}
}
