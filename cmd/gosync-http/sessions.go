package main

import (
	"database/sql"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/blockloop/scan"
	"github.com/gin-gonic/gin"

	_ "modernc.org/sqlite"

	common "gosync/internal/common"
	queries "gosync/internal/db"
	datasync "gosync/internal/datasync"
	nsx "gosync/internal/formats/nsx"
)

type session struct {
	Id          int    `db:"id"           json:"id"`
	Name        string `db:"name"         json:"name"           binding:"required"`
	Timestamp   int64  `db:"timestamp"    json:"timestamp"`
	Description string `db:"description"  json:"description"`
	Rig         string `db:"rig_id"       json:"rig"`
	Condition   *int64 `db:"condition_id" json:"condition"`
	RawData     string `                  json:"data,omitempty" binding:"required"`
}

type syncBlock struct {
	Id    int     `db:"block_id"    json:"id"`
	Start int     `db:"block_start" json:"start"`
	Time  float64 `db:"block_time"  json:"time"`
}

type trial struct {
	Number     int  `db:"number"     json:"number"`
	Successful bool `db:"successful" json:"successful"`
	Start      int  `db:"start"      json:"start"`
}

type alignment struct {
	TrialNumber int     `db:"trial_number" json:"trial"`
	Lag         int     `db:"lag"          json:"lag"`
	Score       float64 `db:"score"        json:"score"`
}

func (this *RequestHandler) GetSessions(c *gin.Context) {
	rows, err := this.Db.Query(queries.Sessions)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var sessions []session
	err = scan.RowsStrict(&sessions, rows)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sessions)
}

func (this *RequestHandler) GetSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := this.Db.Query(queries.Session, id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	var session session
	scan.RowStrict(&session, rows)

	c.JSON(http.StatusOK, session)
}

func (this *RequestHandler) GetSessionData(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var name string
	var data []byte
	err = this.Db.QueryRow(queries.SessionData, id).Scan(&name, &data)
	if err != nil {
		if err == sql.ErrNoRows {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+name)
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (this *RequestHandler) GetSessionSyncBlocks(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := this.Db.Query(queries.SyncBlocks, id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var blocks []syncBlock
	if err := scan.RowsStrict(&blocks, rows); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, blocks)
}

func (this *RequestHandler) GetSessionTrials(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := this.Db.Query(queries.Trials, id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var trials []trial
	if err := scan.RowsStrict(&trials, rows); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, trials)
}

func (this *RequestHandler) GetSessionAlignments(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := this.Db.Query(queries.Alignments, id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var alignments []alignment
	if err := scan.RowsStrict(&alignments, rows); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, alignments)
}

// PutProcessedSession stores a session that was already processed offline
// (a .PSYN file produced by gosync-file), uploaded as base64 msgpack.
func (this *RequestHandler) PutProcessedSession(c *gin.Context) {
	var session session
	if err := c.ShouldBindJSON(&session); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	psyn, err := base64.StdEncoding.DecodeString(session.RawData)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pd, err := common.DecodeProcessed(psyn)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	var conditionId int
	if session.Condition != nil {
		conditionId = int(*session.Condition)
	}
	lastInsertedId, err := common.InsertSession(this.Db, pd, session.Name, session.Description, session.Rig, conditionId)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	} else {
		this.Channel <- lastInsertedId
		c.JSON(http.StatusCreated, gin.H{"id": lastInsertedId})
	}
}

// PutSession imports a raw recording uploaded as base64: the sync channel
// configured for the rig is decoded and the session stored. Trial logs are
// not part of the upload, so no per-trial alignment happens here.
func (this *RequestHandler) PutSession(c *gin.Context) {
	var session session
	if err := c.ShouldBindJSON(&session); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rig, err := common.GetRig(this.Db, session.Rig)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	calibration, err := common.GetRigCalibration(this.Db, rig)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var conditionId int
	var condition *datasync.Condition
	if session.Condition != nil {
		conditionId = int(*session.Condition)
		condition, err = common.GetCondition(this.Db, conditionId)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
	}

	raw, err := base64.StdEncoding.DecodeString(session.RawData)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recording, err := nsx.Read(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	syncSignal, err := recording.Channel(uint32(rig.SyncChannel))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	meta := datasync.Meta{
		Name:               session.Name,
		SampleRateEphys:    recording.SampleRate,
		SampleRateBehavior: 1000,
		Timestamp:          time.Now().Unix(),
	}
	pd, err := datasync.ProcessSession(syncSignal, nil, condition, calibration, meta, datasync.DefaultConfig())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	lastInsertedId, err := common.InsertSession(this.Db, pd, session.Name, session.Description, rig.Id, conditionId)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	} else {
		this.Channel <- lastInsertedId
		c.JSON(http.StatusCreated, gin.H{"id": lastInsertedId})
	}
}

func (this *RequestHandler) DeleteSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := this.Db.Exec(queries.DeleteSession, id); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	} else {
		c.Status(http.StatusNoContent)
	}
}

func (this *RequestHandler) PatchSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var sessionMeta struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"desc"`
	}
	if err := c.ShouldBindJSON(&sessionMeta); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := this.Db.Exec(queries.UpdateSession, sessionMeta.Name, sessionMeta.Description, id); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	} else {
		c.Status(http.StatusNoContent)
	}
}
