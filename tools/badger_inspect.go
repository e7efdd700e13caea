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
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

// Small debugging CLI: dumps the chat store by key prefix so one can
// check what the server actually persisted (rooms, users, memberships,
// message history) without writing throwaway code.
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (room:, roomname:, user:, username:, member:, userroom:, msg:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "ID", "Detail"})
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
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				kind, id, at, detail := describe(rawKey, v)
				timestamp := ""
				if !at.IsZero() {
					timestamp = at.Format("15:04:05")
				}
				table.Append([]string{rawKey, kind, timestamp, shortID(id), detail})
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

// describe classifies a key by its prefix and pulls the readable parts
// out of the JSON value. Index keys (username:, roomname:, member:,
// userroom:) carry the target id as their value or nothing at all.
func describe(key string, value []byte) (kind, id string, at time.Time, detail string) {
	var generic struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Username  string    `json:"username"`
		Content   string    `json:"content"`
		Author    string    `json:"author"`
		CreatedAt time.Time `json:"created_at"`
	}

	switch {
	case strings.HasPrefix(key, "msg:"):
		if err := json.Unmarshal(value, &generic); err != nil {
			return "MESSAGE", "", time.Time{}, fmt.Sprintf("unmarshal error: %v", err)
		}
		return "MESSAGE", generic.ID, generic.CreatedAt,
			fmt.Sprintf("%s: %s", shortID(generic.Author), generic.Content)

	case strings.HasPrefix(key, "room:"):
		if err := json.Unmarshal(value, &generic); err != nil {
			return "ROOM", "", time.Time{}, fmt.Sprintf("unmarshal error: %v", err)
		}
		return "ROOM", generic.ID, generic.CreatedAt, generic.Name

	case strings.HasPrefix(key, "user:"):
		if err := json.Unmarshal(value, &generic); err != nil {
			return "USER", "", time.Time{}, fmt.Sprintf("unmarshal error: %v", err)
		}
		return "USER", generic.ID, generic.CreatedAt, generic.Username

	case strings.HasPrefix(key, "username:"), strings.HasPrefix(key, "roomname:"):
		return "INDEX", string(value), time.Time{}, ""

	case strings.HasPrefix(key, "member:"), strings.HasPrefix(key, "userroom:"):
		return "MEMBERSHIP", "", time.Time{}, ""

	default:
		return "UNKNOWN", "", time.Time{}, ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// A dirty shutdown leaves the value log in need of truncation,
		// which read-only mode refuses to do. Open once in write mode to
		// repair, then retry read-only.
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
