package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"direct-chat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/olekukonko/tablewriter"
)

// Standalone database browser. Opens the store read-only so it can run
// next to a live server process.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, room:, user:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Room", "Detail"})
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
				table.Append(toRow(rawKey, v))
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

// toRow decodes the record according to its key namespace. Records that
// fail to decode still show up as raw rows instead of aborting the scan.
func toRow(rawKey string, val []byte) []string {
	switch {
	case strings.HasPrefix(rawKey, "msg:"):
		var message repositories.DiskMessage
		if err := cbor.Unmarshal(val, &message); err != nil {
			break
		}
		return []string{
			rawKey,
			"MSG",
			message.At.Format("15:04:05"),
			shortID(message.ID.String()),
			message.Room.String(),
			fmt.Sprintf("%s -> %s: %s", message.Sender, message.Recipient, message.Content),
		}
	case strings.HasPrefix(rawKey, "user:"):
		var user repositories.User
		if err := cbor.Unmarshal(val, &user); err != nil {
			break
		}
		return []string{
			rawKey,
			"USER",
			user.CreatedAt.Format("15:04:05"),
			shortID(user.ID),
			"-",
			fmt.Sprintf("%s roles=%v", user.Username, user.Roles),
		}
	}
	return []string{rawKey, "RAW", "--:--:--", "--------", "-",
		fmt.Sprintf("Size: %d bytes", len(val))}
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

	return badger.Open(opts)
}
