package main

import (
	"net/http"
	"strconv"

	"github.com/blockloop/scan"
	"github.com/gin-gonic/gin"

	_ "modernc.org/sqlite"

	queries "gosync/internal/db"
	datasync "gosync/internal/datasync"
)

func (this *RequestHandler) GetCalibrations(c *gin.Context) {
	rows, err := this.Db.Query(queries.Calibrations)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	var cals []datasync.Calibration
	err = scan.RowsStrict(&cals, rows)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, cals)
}

func (this *RequestHandler) GetCalibration(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	var cal datasync.Calibration
	rows, err := this.Db.Query(queries.Calibration, id)
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	err = scan.RowStrict(&cal, rows)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, cal)
}

func (this *RequestHandler) PutCalibration(c *gin.Context) {
	var cal datasync.Calibration
	if err := c.ShouldBindJSON(&cal); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	// fitting validates the raw data before it is stored
	if err := cal.ProcessRawData(); err != nil {
		c.AbortWithStatus(http.StatusUnprocessableEntity)
		return
	}

	cols := []string{"name", "raw_cal_data"}
	vals, _ := scan.Values(cols, &cal)
	var lastInsertedId int
	if err := this.Db.QueryRow(queries.InsertCalibration, vals...).Scan(&lastInsertedId); err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	} else {
		c.JSON(http.StatusCreated, gin.H{"id": lastInsertedId})
	}
}

func (this *RequestHandler) DeleteCalibration(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	if _, err := this.Db.Exec(queries.DeleteCalibration, id); err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
	} else {
		c.Status(http.StatusNoContent)
	}
}
