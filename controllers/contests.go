package controllers

import (
	"net/http"
	"strings"

	dbpkg "peraduan/db"
	"peraduan/models"

	"github.com/gin-gonic/gin"
)

// GET /api/contests?tenant_id=
func GetContests(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured", http.StatusInternalServerError)
		return
	}

	q := db.Order("auto_reply_priority desc, created_at desc")
	if tenantID, ok := QueryInt64(c, "tenant_id"); ok {
		q = q.Where("tenant_id = ?", tenantID)
	}

	var contests []models.Contest
	if err := q.Find(&contests).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, contests)
}

// GET /api/contests/:id
func GetContestByID(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured", http.StatusInternalServerError)
		return
	}

	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var contest models.Contest
	if err := db.First(&contest, id).Error; err != nil {
		RespondError(c, "contest not found", http.StatusNotFound)
		return
	}
	RespondSuccess(c, contest)
}

// POST /api/contests
func CreateContest(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured", http.StatusInternalServerError)
		return
	}

	var contest models.Contest
	if err := c.ShouldBindJSON(&contest); err != nil {
		RespondError(c, "invalid contest payload", http.StatusBadRequest)
		return
	}
	if contest.TenantID <= 0 || strings.TrimSpace(contest.Name) == "" {
		RespondError(c, "tenant_id and name are required", http.StatusBadRequest)
		return
	}

	if err := db.Create(&contest).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusCreated, contest)
}

// PUT /api/contests/:id
func UpdateContest(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured", http.StatusInternalServerError)
		return
	}

	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var contest models.Contest
	if err := db.First(&contest, id).Error; err != nil {
		RespondError(c, "contest not found", http.StatusNotFound)
		return
	}

	var in models.Contest
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, "invalid contest payload", http.StatusBadRequest)
		return
	}
	in.ID = contest.ID
	in.TenantID = contest.TenantID

	if err := db.Save(&in).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, in)
}
