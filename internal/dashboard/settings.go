package dashboard

import (
	"net/http"

	"github.com/atelierhq/studioops/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Column mappings and board-role markers are edited here and read-only
// during sync.

func handleMappingList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var mappings []models.ColumnMapping
		if err := db.Order("column_type, board_id").Find(&mappings).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"mappings": mappings})
	}
}

var mappingFields = map[string]bool{
	models.FieldClient:        true,
	models.FieldQuotedHours:   true,
	models.FieldTimeline:      true,
	models.FieldDueDate:       true,
	models.FieldCompletedDate: true,
	models.FieldQuoteValue:    true,
	models.FieldAgency:        true,
	models.FieldActive:        true,
}

func handleCreateMapping(db *gorm.DB) gin.HandlerFunc {
	type req struct {
		BoardID        *string `json:"board_id"` // null for the global default
		ColumnType     string  `json:"column_type" binding:"required"`
		MondayColumnID string  `json:"monday_column_id" binding:"required"`
		WorkspaceID    *string `json:"workspace_id"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !mappingFields[body.ColumnType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown column_type"})
			return
		}
		m := models.ColumnMapping{
			BoardID:        body.BoardID,
			ColumnType:     body.ColumnType,
			MondayColumnID: body.MondayColumnID,
			WorkspaceID:    body.WorkspaceID,
		}
		if err := db.Create(&m).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, m)
	}
}

func handleDeleteMapping(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		result := db.Delete(&models.ColumnMapping{}, id)
		if result.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "mapping not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

var boardRoles = map[string]bool{
	models.BoardRoleCompleted:      true,
	models.BoardRoleFlexiCompleted: true,
	models.BoardRoleLeads:          true,
}

func handleBoardRoleList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var roles []models.BoardRole
		if err := db.Order("role, board_id").Find(&roles).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"boards": roles})
	}
}

func handleCreateBoardRole(db *gorm.DB) gin.HandlerFunc {
	type req struct {
		BoardID   string `json:"board_id" binding:"required"`
		BoardName string `json:"board_name"`
		Role      string `json:"role" binding:"required"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !boardRoles[body.Role] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
			return
		}
		r := models.BoardRole{
			BoardID:   body.BoardID,
			BoardName: body.BoardName,
			Role:      body.Role,
		}
		if err := db.Create(&r).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

func handleDeleteBoardRole(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		result := db.Delete(&models.BoardRole{}, id)
		if result.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "board role not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}
