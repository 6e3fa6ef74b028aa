package main

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"
	"github.com/pebbe/zmq4"

	_ "modernc.org/sqlite"

	queries "gosync/internal/db"
)

type RequestHandler struct {
	Db      *sql.DB
	Socket  *zmq4.Socket
	Channel chan int
}

func contains(list []string, e string) bool {
	for _, s := range list {
		if s == e {
			return true
		}
	}
	return false
}

func loadApiTokens(db *sql.DB) ([]string, error) {
	rows, err := db.Query(queries.Tokens)
	if err != nil {
		return nil, err
	}
	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err == nil {
			tokens = append(tokens, t)
		}
	}
	return tokens, nil
}

func (this *RequestHandler) TokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokens, err := loadApiTokens(this.Db)
		if err != nil {
			log.Println("Could not load API tokens.")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := c.GetHeader("X-Token")
		if !contains(tokens, token) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// notify forwards imported session ids to the dashboard server so it can
// regenerate its plots.
func (this *RequestHandler) notify() {
	for id := range this.Channel {
		if this.Socket == nil {
			continue
		}
		if _, err := this.Socket.Send(strconv.Itoa(id), 0); err != nil {
			log.Println("[WARN] could not notify dashboard server:", err)
		}
	}
}

func main() {
	var opts struct {
		DatabaseFile string `short:"d" long:"database" description:"SQLite3 database file path" required:"true"`
		Host         string `short:"h" long:"host" description:"Host to bind on" default:"127.0.0.1"`
		Port         string `short:"p" long:"port" description:"Port to bind on" default:"8080"`
		ZmqHost      string `short:"H" long:"zhost" description:"ZMQ server host" default:"127.0.0.1"`
		ZmqPort      string `short:"P" long:"zport" description:"ZMQ server port" default:"5555"`
	}
	_, err := flags.Parse(&opts)
	if err != nil {
		return
	}

	db, err := sql.Open("sqlite", opts.DatabaseFile)
	if err != nil {
		log.Fatal("Could not open database")
	}
	if _, err := db.Exec(queries.Schema); err != nil {
		log.Fatal("Could not create data tables")
	}

	soc, err := zmq4.NewSocket(zmq4.PUSH)
	defer soc.Close()
	if err != nil {
		log.Println("[WARN] could not create ZMQ socket (dashboard notifications disabled)")
	} else {
		if err = soc.Connect("tcp://" + opts.ZmqHost + ":" + opts.ZmqPort); err != nil {
			log.Println("[WARN] could not connect to ZMQ server (dashboard notifications disabled)")
			soc.Close()
			soc = nil
		}
	}

	rh := RequestHandler{Db: db, Socket: soc, Channel: make(chan int, 100)}
	go rh.notify()
	//XXX gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.SetTrustedProxies(nil)

	router.GET("/calibrations", rh.GetCalibrations)
	router.GET("/calibration/:id", rh.GetCalibration)
	router.PUT("/calibration", rh.TokenAuthMiddleware(), rh.PutCalibration)
	router.DELETE("/calibration/:id", rh.TokenAuthMiddleware(), rh.DeleteCalibration)

	router.GET("/conditions", rh.GetConditions)
	router.GET("/condition/:id", rh.GetCondition)
	router.PUT("/condition", rh.TokenAuthMiddleware(), rh.PutCondition)
	router.DELETE("/condition/:id", rh.TokenAuthMiddleware(), rh.DeleteCondition)

	router.GET("/rigs", rh.GetRigs)
	router.GET("/rig/:id", rh.GetRig)
	router.PUT("/rig", rh.TokenAuthMiddleware(), rh.PutRig)
	router.DELETE("/rig/:id", rh.TokenAuthMiddleware(), rh.DeleteRig)

	router.GET("/sessions", rh.GetSessions)
	router.GET("/session/:id", rh.GetSession)
	router.GET("/sessiondata/:id", rh.GetSessionData)
	router.GET("/session/:id/syncblocks", rh.GetSessionSyncBlocks)
	router.GET("/session/:id/trials", rh.GetSessionTrials)
	router.GET("/session/:id/alignments", rh.GetSessionAlignments)
	router.PUT("/session", rh.TokenAuthMiddleware(), rh.PutSession)
	router.PUT("/session/processed", rh.TokenAuthMiddleware(), rh.PutProcessedSession)
	router.DELETE("/session/:id", rh.TokenAuthMiddleware(), rh.DeleteSession)
	router.PATCH("/session/:id", rh.TokenAuthMiddleware(), rh.PatchSession)

	router.Run(opts.Host + ":" + opts.Port)
}
