package common

import (
	"database/sql"

	"github.com/blockloop/scan"
	"github.com/ugorji/go/codec"
	_ "modernc.org/sqlite"

	datasync "gosync/internal/datasync"
	queries "gosync/internal/db"
)

// Rig is one acquisition setup: which recording channels carry the sync
// signal and the raw force, and which load cell calibration applies.
type Rig struct {
	Id            string `db:"id"             json:"id"   binding:"required"`
	Name          string `db:"name"           json:"name" binding:"required"`
	SyncChannel   int    `db:"sync_channel"   json:"sync_channel"`
	ForceChannel  int    `db:"force_channel"  json:"force_channel"`
	CalibrationId *int64 `db:"calibration_id" json:"calibration_id"`
}

func GetCalibration(db *sql.DB, id int) (*datasync.Calibration, error) {
	var calibration datasync.Calibration
	rows, err := db.Query(queries.Calibration, id)
	if err != nil {
		return nil, err
	}
	if err = scan.RowStrict(&calibration, rows); err != nil {
		return nil, err
	}
	if err = calibration.ProcessRawData(); err != nil {
		return nil, err
	}

	return &calibration, nil
}

func GetCondition(db *sql.DB, id int) (*datasync.Condition, error) {
	var condition datasync.Condition
	rows, err := db.Query(queries.Condition, id)
	if err != nil {
		return nil, err
	}
	if err = scan.RowStrict(&condition, rows); err != nil {
		return nil, err
	}
	if err = condition.ProcessRawData(); err != nil {
		return nil, err
	}

	return &condition, nil
}

func GetRig(db *sql.DB, id string) (*Rig, error) {
	var rig Rig
	rows, err := db.Query(queries.Rig, id)
	if err != nil {
		return nil, err
	}
	if err = scan.RowStrict(&rig, rows); err != nil {
		return nil, err
	}

	return &rig, nil
}

// GetRigCalibration fetches a rig's calibration, or nil when the rig has
// none assigned.
func GetRigCalibration(db *sql.DB, rig *Rig) (*datasync.Calibration, error) {
	if rig.CalibrationId == nil {
		return nil, nil
	}
	return GetCalibration(db, int(*rig.CalibrationId))
}

func EncodeProcessed(pd *datasync.Processed) []byte {
	var data []byte
	var h codec.MsgpackHandle
	enc := codec.NewEncoderBytes(&data, &h)
	enc.Encode(pd)
	return data
}

func DecodeProcessed(data []byte) (*datasync.Processed, error) {
	var pd datasync.Processed
	var h codec.MsgpackHandle
	dec := codec.NewDecoderBytes(data, &h)
	if err := dec.Decode(&pd); err != nil {
		return nil, err
	}
	return &pd, nil
}

// InsertSession stores a processed session: the msgpack blob plus the
// queryable sync block, trial and alignment rows, all in one transaction.
// A conditionId of zero records no condition.
func InsertSession(db *sql.DB, pd *datasync.Processed, name, description, rigId string, conditionId int) (int, error) {
	data := EncodeProcessed(pd)

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var cond interface{}
	if conditionId != 0 {
		cond = conditionId
	}
	var lastInsertedId int
	err = tx.QueryRow(queries.InsertSession, name, pd.Timestamp, description, rigId, cond, data).Scan(&lastInsertedId)
	if err != nil {
		return 0, err
	}

	for _, block := range pd.Blocks {
		if _, err := tx.Exec(queries.InsertSyncBlock, lastInsertedId, block.Id, block.Start, block.Time); err != nil {
			return 0, err
		}
	}
	for _, trial := range pd.Trials {
		if _, err := tx.Exec(queries.InsertTrial, lastInsertedId, trial.Number, trial.Successful, trial.Start); err != nil {
			return 0, err
		}
		if trial.Alignment == nil {
			continue
		}
		if _, err := tx.Exec(queries.InsertAlignment, lastInsertedId, trial.Number,
			trial.Alignment.Lag, trial.Alignment.Score); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return lastInsertedId, nil
}
