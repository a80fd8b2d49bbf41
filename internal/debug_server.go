package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

var (
	resumeChan  = make(chan struct{}, 1)
	currentPort int
)

type InspectRow struct {
	Key       string
	Sequence  string
	Sender    string
	Kind      string
	Body      string
	Timestamp string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// Inspect starts the debug server, runs fn, then blocks until /resume
// is hit. Used by paused e2e sessions to eyeball the message log.
func Inspect(db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider, prefix string, fn func()) {
	StartDebugServer(db, port, endpoint, mapper, statsProvider)

	if fn != nil {
		fn()
	}

	Wait(prefix)
}

func StartDebugServer(db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) {
	currentPort = port
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = MessageMapper
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}

		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	mux.HandleFunc("/resume", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-resumeChan:
		default:
		}
		resumeChan <- struct{}{}
		fmt.Fprint(w, "RESUMED")
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

func Wait(prefix string) {
	url := fmt.Sprintf("http://localhost:%d/inspect?prefix=%s", currentPort, prefix)
	fmt.Printf("\n--- TEST PAUSED ---\n\n%s\n\n-------------------\n", url)
	<-resumeChan
}

// MessageMapper decodes a message record stored under "msg:{seq}:{id}".
func MessageMapper(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Sequence:  "-",
		Sender:    "--------",
		Kind:      "RAW",
		Body:      "Size: " + strconv.Itoa(len(val)) + " bytes",
		Timestamp: "--:--:--",
	}

	parts := strings.Split(key, ":")
	if len(parts) >= 3 {
		row.Sequence = strings.TrimLeft(parts[1], "0")
		if row.Sequence == "" {
			row.Sequence = "0"
		}
	}

	var record struct {
		SenderName string `json:"sender_name"`
		Kind       string `json:"kind"`
		Body       string `json:"body"`
		AtNano     int64  `json:"at"`
		Deleted    bool   `json:"deleted"`
	}
	if err := json.Unmarshal(val, &record); err != nil {
		return row
	}

	row.Sender = record.SenderName
	row.Kind = record.Kind
	if record.Deleted {
		row.Kind = record.Kind + " (deleted)"
	}
	row.Body = record.Body
	if len(row.Body) > 80 {
		row.Body = row.Body[:80] + "…"
	}
	row.Timestamp = time.Unix(0, record.AtNano).Format("15:04:05")
	return row
}
