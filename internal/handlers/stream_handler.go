package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/reconciler"
)

func Health(rec *reconciler.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		state := "ready"
		if !rec.IsReady() {
			status = http.StatusServiceUnavailable
			state = "loading"
		}
		c.JSON(status, gin.H{"status": state})
	}
}

// StreamProjects sends the whole project list as an SSE event on connect and
// after every change until the client goes away.
func StreamProjects(rec *reconciler.Reconciler) gin.HandlerFunc {
	return streamSnapshots(rec, "projects", reconciler.ChangeProjects, func() interface{} {
		return rec.Projects()
	})
}

func StreamUsers(rec *reconciler.Reconciler) gin.HandlerFunc {
	return streamSnapshots(rec, "users", reconciler.ChangeUsers, func() interface{} {
		return rec.Users()
	})
}

func streamSnapshots(rec *reconciler.Reconciler, event string, kind reconciler.Change, snapshot func() interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := rec.WaitReady(ctx); err != nil {
			respondError(c, err)
			return
		}
		changes, stop := rec.Watch(kind)
		defer stop()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.SSEvent(event, models.ListResponse(snapshot(), 0))
		c.Writer.Flush()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case _, ok := <-changes:
				if !ok {
					return false
				}
				c.SSEvent(event, models.ListResponse(snapshot(), 0))
				return true
			}
		})
	}
}
