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

func (this *RequestHandler) GetConditions(c *gin.Context) {
	rows, err := this.Db.Query(queries.Conditions)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	var conds []datasync.Condition
	err = scan.RowsStrict(&conds, rows)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, conds)
}

func (this *RequestHandler) GetCondition(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	var cond datasync.Condition
	rows, err := this.Db.Query(queries.Condition, id)
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	err = scan.RowStrict(&cond, rows)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, cond)
}

func (this *RequestHandler) PutCondition(c *gin.Context) {
	var cond datasync.Condition
	if err := c.ShouldBindJSON(&cond); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	if err := cond.ProcessRawData(); err != nil {
		c.AbortWithStatus(http.StatusUnprocessableEntity)
		return
	}

	cols := []string{"name", "raw_target_data"}
	vals, _ := scan.Values(cols, &cond)
	var lastInsertedId int
	if err := this.Db.QueryRow(queries.InsertCondition, vals...).Scan(&lastInsertedId); err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	} else {
		c.JSON(http.StatusCreated, gin.H{"id": lastInsertedId})
	}
}

func (this *RequestHandler) DeleteCondition(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	if _, err := this.Db.Exec(queries.DeleteCondition, id); err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
	} else {
		c.Status(http.StatusNoContent)
	}
}
