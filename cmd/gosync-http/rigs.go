package main

import (
	"net/http"

	"github.com/blockloop/scan"
	"github.com/gin-gonic/gin"

	_ "modernc.org/sqlite"

	common "gosync/internal/common"
	queries "gosync/internal/db"
)

func (this *RequestHandler) GetRigs(c *gin.Context) {
	rows, err := this.Db.Query(queries.Rigs)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	var rigs []common.Rig
	err = scan.RowsStrict(&rigs, rows)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, rigs)
}

func (this *RequestHandler) GetRig(c *gin.Context) {
	rig, err := common.GetRig(this.Db, c.Param("id"))
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, rig)
}

func (this *RequestHandler) PutRig(c *gin.Context) {
	var rig common.Rig
	if err := c.ShouldBindJSON(&rig); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	vals, _ := scan.Values([]string{"id", "name", "sync_channel", "force_channel", "calibration_id"}, &rig)
	var lastInsertedId int
	err := this.Db.QueryRow(queries.InsertRig, vals...).Scan(&lastInsertedId)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	} else {
		c.JSON(http.StatusCreated, gin.H{"id": rig.Id})
	}
}

func (this *RequestHandler) DeleteRig(c *gin.Context) {
	if _, err := this.Db.Exec(queries.DeleteRig, c.Param("id")); err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
	} else {
		c.Status(http.StatusNoContent)
	}
}
