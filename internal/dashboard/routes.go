package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/atelierhq/studioops/internal/accounting"
	"github.com/atelierhq/studioops/internal/monday"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, hub *Hub, acct *accounting.Client) {
	api := router.Group("/api")

	api.GET("/projects", handleProjectList(db))
	api.GET("/projects/:id", handleProjectDetail(db))

	api.GET("/clients", handleClientList(db))
	api.GET("/clients/:id/credits", handleFlexiLedger(db))
	api.POST("/clients/:id/credits", handleCreateFlexiCredit(db))

	api.GET("/time-entries", handleTimeEntryList(db))
	api.POST("/time-entries", handleCreateTimeEntry(db))

	api.GET("/quotes", handleQuoteList(db))
	api.POST("/quotes", handleCreateQuote(db))
	api.GET("/quotes/:id", handleQuoteDetail(db))
	api.POST("/quotes/:id/status", handleQuoteStatus(db))
	api.GET("/share/:token", handleSharedQuote(db))

	api.GET("/retainers", handleRetainerCapacity(db))
	api.POST("/retainers", handleCreateRetainer(db))

	api.GET("/forecast", handleForecast(db, acct))

	api.GET("/settings/mappings", handleMappingList(db))
	api.POST("/settings/mappings", handleCreateMapping(db))
	api.DELETE("/settings/mappings/:id", handleDeleteMapping(db))
	api.GET("/settings/boards", handleBoardRoleList(db))
	api.POST("/settings/boards", handleCreateBoardRole(db))
	api.DELETE("/settings/boards/:id", handleDeleteBoardRole(db))

	api.GET("/sync/runs", handleSyncRunList(db))
	api.POST("/sync", handleTriggerSync(hub))
	api.GET("/events", handleSSE(hub))
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func handleProjectList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := ProjectList(db, c.Query("status"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": rows})
	}
}

func handleProjectDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		detail, err := LoadProjectDetail(db, id)
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func handleClientList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := ClientList(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"clients": rows})
	}
}

func handleForecast(db *gorm.DB, acct *accounting.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		months := 6
		if m, err := strconv.Atoi(c.Query("months")); err == nil && m > 0 && m <= 24 {
			months = m
		}
		from := time.Now()
		rows, err := Forecast(db, from, months)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if acct != nil {
			invoices, err := acct.Invoices(c.Request.Context(), time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC))
			if err != nil {
				// The forecast still renders without accounting data.
				c.JSON(http.StatusOK, gin.H{"forecast": rows, "accounting_error": err.Error()})
				return
			}
			byMonth := make(map[string]float64)
			for _, inv := range invoices {
				byMonth[inv.IssuedAt.Format("2006-01")] += inv.Total
			}
			for i := range rows {
				rows[i].Invoiced = byMonth[rows[i].Month]
			}
		}
		c.JSON(http.StatusOK, gin.H{"forecast": rows})
	}
}

func handleSyncRunList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		runs, err := SyncRunList(db, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func handleTriggerSync(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := monday.Options{
			Trigger: "manual",
			Full:    c.Query("full") == "true",
			// The manual path avoids destructive surprises by default.
			KeepOrphans: c.Query("prune") != "true",
		}
		err := hub.Trigger(opts)
		if err == ErrSyncRunning {
			c.JSON(http.StatusConflict, gin.H{"error": "sync already running"})
			return
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "started"})
	}
}
