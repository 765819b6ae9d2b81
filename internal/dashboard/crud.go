package dashboard

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/atelierhq/studioops/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func handleFlexiLedger(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		entries, balance, err := FlexiLedger(db, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries, "balance": balance})
	}
}

func handleCreateFlexiCredit(db *gorm.DB) gin.HandlerFunc {
	type req struct {
		Hours       float64 `json:"hours" binding:"required"`
		Description string  `json:"description"`
	}
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var client models.Client
		if err := db.First(&client, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		entry := models.FlexiCredit{
			ClientID:    client.ID,
			Hours:       body.Hours,
			Description: body.Description,
		}
		if err := db.Create(&entry).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func handleTimeEntryList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Order("worked_on desc").Limit(200)
		if pid := c.Query("project_id"); pid != "" {
			q = q.Where("project_id = ?", pid)
		}
		var entries []models.TimeEntry
		if err := q.Find(&entries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

func handleCreateTimeEntry(db *gorm.DB) gin.HandlerFunc {
	type req struct {
		ProjectID   uint    `json:"project_id" binding:"required"`
		TaskID      *uint   `json:"task_id"`
		UserName    string  `json:"user_name"`
		Description string  `json:"description"`
		Hours       float64 `json:"hours" binding:"required"`
		WorkedOn    string  `json:"worked_on"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var proj models.Project
		if err := db.First(&proj, body.ProjectID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		workedOn := time.Now()
		if body.WorkedOn != "" {
			t, err := time.Parse("2006-01-02", body.WorkedOn)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "worked_on must be YYYY-MM-DD"})
				return
			}
			workedOn = t
		}
		entry := models.TimeEntry{
			ProjectID:   body.ProjectID,
			TaskID:      body.TaskID,
			UserName:    body.UserName,
			Description: body.Description,
			Hours:       body.Hours,
			WorkedOn:    workedOn,
		}
		if err := db.Create(&entry).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func handleQuoteList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quotes []models.Quote
		if err := db.Preload("LineItems").Order("id desc").Find(&quotes).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"quotes": quotes})
	}
}

func handleCreateQuote(db *gorm.DB) gin.HandlerFunc {
	type lineItem struct {
		Description string  `json:"description" binding:"required"`
		Hours       float64 `json:"hours"`
		Amount      float64 `json:"amount"`
	}
	type req struct {
		ClientName string     `json:"client_name"`
		Title      string     `json:"title" binding:"required"`
		HourlyRate float64    `json:"hourly_rate"`
		LineItems  []lineItem `json:"line_items"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		quote := models.Quote{
			ClientName: body.ClientName,
			Title:      body.Title,
			Status:     models.QuoteDraft,
			HourlyRate: body.HourlyRate,
			ShareToken: newShareToken(),
		}
		for i, li := range body.LineItems {
			amount := li.Amount
			if amount == 0 && body.HourlyRate > 0 {
				amount = li.Hours * body.HourlyRate
			}
			quote.LineItems = append(quote.LineItems, models.QuoteLineItem{
				Description: li.Description,
				Hours:       li.Hours,
				Amount:      amount,
				Position:    i,
			})
		}
		if err := db.Create(&quote).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, quoteView(&quote))
	}
}

func handleQuoteDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var quote models.Quote
		if err := db.Preload("LineItems").First(&quote, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "quote not found"})
			return
		}
		c.JSON(http.StatusOK, quoteView(&quote))
	}
}

var quoteStatuses = map[string]bool{
	models.QuoteDraft:    true,
	models.QuoteSent:     true,
	models.QuoteAccepted: true,
	models.QuoteDeclined: true,
}

func handleQuoteStatus(db *gorm.DB) gin.HandlerFunc {
	type req struct {
		Status string `json:"status" binding:"required"`
	}
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var body req
		if err := c.ShouldBindJSON(&body); err != nil || !quoteStatuses[body.Status] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		result := db.Model(&models.Quote{}).Where("id = ?", id).Update("status", body.Status)
		if result.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "quote not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": body.Status})
	}
}

// handleSharedQuote serves the read-only share-link view of a quote.
func handleSharedQuote(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quote models.Quote
		err := db.Preload("LineItems").Where("share_token = ?", c.Param("token")).First(&quote).Error
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "quote not found"})
			return
		}
		c.JSON(http.StatusOK, quoteView(&quote))
	}
}

// quoteView decorates a quote with its totals.
func quoteView(q *models.Quote) gin.H {
	totalHours, totalAmount := 0.0, 0.0
	for _, li := range q.LineItems {
		totalHours += li.Hours
		totalAmount += li.Amount
	}
	return gin.H{
		"quote":        q,
		"total_hours":  totalHours,
		"total_amount": totalAmount,
	}
}

// newShareToken generates a URL-safe token for quote share links.
func newShareToken() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

func handleRetainerCapacity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		month := time.Now()
		if m := c.Query("month"); m != "" {
			t, err := time.Parse("2006-01", m)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "month must be YYYY-MM"})
				return
			}
			month = t
		}
		rows, err := RetainerCapacity(db, month)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"retainers": rows, "month": month.Format("2006-01")})
	}
}

func handleCreateRetainer(db *gorm.DB) gin.HandlerFunc {
	type req struct {
		ClientID     uint    `json:"client_id" binding:"required"`
		Name         string  `json:"name"`
		MonthlyHours float64 `json:"monthly_hours" binding:"required"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var client models.Client
		if err := db.First(&client, body.ClientID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		r := models.Retainer{
			ClientID:     body.ClientID,
			Name:         body.Name,
			MonthlyHours: body.MonthlyHours,
			Active:       true,
			StartedAt:    time.Now(),
		}
		if err := db.Create(&r).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}
