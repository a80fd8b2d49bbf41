// Viewer dumps the room's message log from a Badger directory without
// starting the server. Read-only; safe to run while the server holds
// the lock.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "/tmp/chatroom/badger", "Path to badger DB")
	// Par défaut on cherche "msg:" pour éviter de percuter les index idx:
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	showDeleted := flag.Bool("deleted", false, "Include soft-deleted messages")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Seq", "Timestamp", "Sender", "Role", "Kind", "Lang", "Body"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			// Sécurité : on ignore explicitement les index secondaires
			if strings.HasPrefix(string(item.Key()), "idx:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var record struct {
					SenderName string `json:"sender_name"`
					SenderRole string `json:"sender_role"`
					Body       string `json:"body"`
					Kind       string `json:"kind"`
					Lang       string `json:"lang"`
					AtNano     int64  `json:"at"`
					Deleted    bool   `json:"deleted"`
				}
				if err := json.Unmarshal(v, &record); err != nil {
					// Au lieu de stopper tout le script, on log l'erreur et on continue
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}

				if record.Deleted && !*showDeleted {
					return nil
				}

				seq := "-"
				if parts := strings.Split(string(item.Key()), ":"); len(parts) >= 3 {
					seq = strings.TrimLeft(parts[1], "0")
					if seq == "" {
						seq = "0"
					}
				}

				body := record.Body
				if len(body) > 60 {
					body = body[:60] + "…"
				}
				if record.Deleted {
					body = "[deleted] " + body
				}

				table.Append([]string{
					seq,
					time.Unix(0, record.AtNano).Format("15:04:05"),
					record.SenderName,
					record.SenderRole,
					record.Kind,
					record.Lang,
					body,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// Si corruption détectée, essaie un open en write pour truncate
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			// Ferme et réouvre en read-only
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
