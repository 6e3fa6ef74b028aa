package main

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"io"
	"log"
	"net"
	"regexp"
	"time"

	"github.com/jessevdk/go-flags"
	_ "modernc.org/sqlite"

	common "gosync/internal/common"
	datasync "gosync/internal/datasync"
	queries "gosync/internal/db"
	nsx "gosync/internal/formats/nsx"
)

// putSession imports a raw recording pushed by a rig: only the timing track
// is decoded here, trial logs arrive separately through the HTTP API.
func putSession(db *sql.DB, rigId, name string, data []byte) error {
	rig, err := common.GetRig(db, rigId)
	if err != nil {
		return err
	}
	calibration, err := common.GetRigCalibration(db, rig)
	if err != nil {
		return err
	}

	recording, err := nsx.Read(data)
	if err != nil {
		return err
	}
	syncSignal, err := recording.Channel(uint32(rig.SyncChannel))
	if err != nil {
		return err
	}

	meta := datasync.Meta{
		Name:               name,
		SampleRateEphys:    recording.SampleRate,
		SampleRateBehavior: 1000,
		Timestamp:          time.Now().Unix(),
	}
	pd, err := datasync.ProcessSession(syncSignal, nil, nil, calibration, meta, datasync.DefaultConfig())
	if err != nil {
		return err
	}

	if _, err := common.InsertSession(db, pd, name, "", rig.Id, 0); err != nil {
		return err
	}

	return nil
}

type header struct {
	RigId [8]byte
	Size  uint64
	Name  [9]byte
}

func handleRequest(conn net.Conn, db *sql.DB) {
	bufHeader := make([]byte, 25)
	l, err := conn.Read(bufHeader)
	if err != nil || l != 25 {
		log.Println("[ERR] Could not fetch header")
		conn.Write([]byte{0xf1 /* ERR_CLSD from LwIP */})
		return
	}
	defer conn.Close()

	reader := bytes.NewReader(bufHeader)
	var header header
	err = binary.Read(reader, binary.LittleEndian, &header)
	if err != nil {
		log.Println("[ERR] Invalid data")
		conn.Write([]byte{0xfa /* ERR_VAL from LwIP */})
		return
	}

	if header.Size > 512*1024*1024 {
		log.Println("[ERR] Size exceeds maximum")
		conn.Write([]byte{0xfa /* ERR_VAL from LwIP */})
		return
	}

	name := string(header.Name[:])
	if m, _ := regexp.MatchString("[0-9]{5}\\.NSX", name); !m {
		log.Println("[ERR] Wrong name format")
		conn.Write([]byte{0xfa /* ERR_VAL from LwIP */})
		return
	}
	conn.Write([]byte{4 /* STATUS_HEADER_OK */})

	data := make([]byte, header.Size)
	_, err = io.ReadFull(conn, data)
	if err != nil {
		log.Println("[ERR] Could not fetch data")
		conn.Write([]byte{0xf1 /* ERR_CLSD from LwIP */})
		return
	}

	if putSession(db, hex.EncodeToString(header.RigId[:]), name, data) == nil {
		conn.Write([]byte{6 /* STATUS_SUCCESS */})
		log.Print("[OK] session '", name, "' was successfully imported")
	} else {
		conn.Write([]byte{0xfa /* ERR_VAL from LwIP */})
		log.Print("[ERR] session '", name, "' could not be imported")
	}
}

func main() {
	var opts struct {
		DatabaseFile string `short:"d" long:"database" description:"SQLite3 database file path" required:"true"`
		Host         string `short:"h" long:"host" description:"Host to bind on" default:"0.0.0.0"`
		Port         string `short:"p" long:"port" description:"Port to bind on" default:"557"`
	}
	_, err := flags.Parse(&opts)
	if err != nil {
		return
	}

	db, err := sql.Open("sqlite", opts.DatabaseFile)
	if err != nil {
		log.Fatal("[ERR] could not open database")
	}
	if _, err := db.Exec(queries.Schema); err != nil {
		log.Fatal("[ERR] could not create data tables")
	}

	l, err := net.Listen("tcp", opts.Host+":"+opts.Port)
	if err != nil {
		log.Fatal("[ERR]", err.Error())
	}
	defer l.Close()

	for {
		conn, err := l.Accept()
		if err != nil {
			log.Println("[ERR]", err.Error())
			continue
		}
		go handleRequest(conn, db)
	}
}
