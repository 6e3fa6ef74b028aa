package db

var Schema = `
	CREATE TABLE IF NOT EXISTS tokens (
		token TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS rigs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sync_channel INTEGER NOT NULL,
		force_channel INTEGER NOT NULL,
		calibration_id INTEGER,
		FOREIGN KEY (calibration_id) REFERENCES calibrations (id)
	);
    CREATE TABLE IF NOT EXISTS calibrations (
        id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		raw_cal_data TEXT NOT NULL
    );
    CREATE TABLE IF NOT EXISTS conditions (
        id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		raw_target_data TEXT NOT NULL
    );
    CREATE TABLE IF NOT EXISTS sessions(
		id INTEGER PRIMARY KEY,
		name TEXT,
		rig_id TEXT NOT NULL,
		condition_id INTEGER,
		description TEXT,
		timestamp INTEGER NOT NULL,
		data BLOB NOT NULL,
		FOREIGN KEY (rig_id) REFERENCES rigs (id),
		FOREIGN KEY (condition_id) REFERENCES conditions (id)
	);
	CREATE TABLE IF NOT EXISTS sync_blocks(
		session_id INTEGER NOT NULL,
		block_id INTEGER NOT NULL,
		block_start INTEGER NOT NULL,
		block_time REAL NOT NULL,
		PRIMARY KEY (session_id, block_id),
		FOREIGN KEY (session_id) REFERENCES sessions (id)
	);
	CREATE TABLE IF NOT EXISTS trials(
		session_id INTEGER NOT NULL,
		number INTEGER NOT NULL,
		successful INTEGER NOT NULL,
		start INTEGER NOT NULL,
		PRIMARY KEY (session_id, number),
		FOREIGN KEY (session_id) REFERENCES sessions (id)
	);
	CREATE TABLE IF NOT EXISTS alignments(
		session_id INTEGER NOT NULL,
		trial_number INTEGER NOT NULL,
		lag INTEGER NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (session_id, trial_number),
		FOREIGN KEY (session_id, trial_number) REFERENCES trials (session_id, number)
	);`

var Tokens = `
	SELECT token
	FROM tokens`

var InsertToken = `
	INSERT
	INTO tokens (token)
	VALUES (?)
	RETURNING rowid`

var RigWithCalibration = `
	SELECT R.id, R.name, R.sync_channel, R.force_channel, R.calibration_id
	FROM rigs R
	WHERE R.id = ?`

var Rigs = `
	SELECT *
	FROM rigs`

var Rig = `
	SELECT *
	FROM rigs
	WHERE id = ?`

var InsertRig = `
	INSERT
	INTO rigs (id, name, sync_channel, force_channel, calibration_id)
	VALUES (?, ?, ?, ?, ?)
	RETURNING rowid`

var DeleteRig = `
	DELETE
	FROM rigs
	WHERE id = ?`

var Calibrations = `
	SELECT *
	FROM calibrations`

var Calibration = `
	SELECT *
	FROM calibrations
	WHERE id = ?`

var InsertCalibration = `
	INSERT
	INTO calibrations (name, raw_cal_data)
	VALUES (?, ?)
	RETURNING id
	`
var DeleteCalibration = `
	DELETE
	FROM calibrations
	WHERE id = ?`

var Conditions = `
	SELECT *
	FROM conditions`

var Condition = `
	SELECT *
	FROM conditions
	WHERE id = ?`

var InsertCondition = `
	INSERT
	INTO conditions (name, raw_target_data)
	VALUES (?, ?)
	RETURNING id
	`
var DeleteCondition = `
	DELETE
	FROM conditions
	WHERE id = ?`

var Sessions = `
	SELECT id, name, timestamp, description, rig_id, condition_id
	FROM sessions
	`
var Session = `
	SELECT id, name, timestamp, description, rig_id, condition_id
	FROM sessions
	WHERE id = ?`

var SessionData = `
	SELECT name, data
	FROM sessions
	WHERE id = ?`

var InsertSession = `
	INSERT
	INTO sessions (name, timestamp, description, rig_id, condition_id, data)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING id`

var DeleteSession = `
	DELETE
	FROM sessions
	WHERE id = ?`

var UpdateSession = `
	UPDATE sessions
	SET (name, description) = (?, ?)
	WHERE id = ?`

var SyncBlocks = `
	SELECT block_id, block_start, block_time
	FROM sync_blocks
	WHERE session_id = ?
	ORDER BY block_id`

var InsertSyncBlock = `
	INSERT
	INTO sync_blocks (session_id, block_id, block_start, block_time)
	VALUES (?, ?, ?, ?)`

var Trials = `
	SELECT number, successful, start
	FROM trials
	WHERE session_id = ?
	ORDER BY number`

var InsertTrial = `
	INSERT
	INTO trials (session_id, number, successful, start)
	VALUES (?, ?, ?, ?)`

var Alignments = `
	SELECT trial_number, lag, score
	FROM alignments
	WHERE session_id = ?
	ORDER BY trial_number`

var InsertAlignment = `
	INSERT
	INTO alignments (session_id, trial_number, lag, score)
	VALUES (?, ?, ?, ?)`
