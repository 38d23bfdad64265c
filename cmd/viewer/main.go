package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"edu-relay/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

// viewer dumps persisted messages straight from BadgerDB, bypassing the
// relay. Useful to audit what actually hit the disk after a replay bug
// report.
func main() {
	_ = godotenv.Load()

	defaultPath := os.Getenv("BADGER_FILEPATH")
	dbPath := flag.String("db", defaultPath, "Path to badger DB")
	room := flag.String("room", "", "Only show messages for this room id")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	header := color.New(color.BgBlack, color.FgGreen).Render(" edu-relay message store ")
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Created At", "Sender", "Text", "ID"})
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

	prefix := "msg:"
	if *room != "" {
		prefix = fmt.Sprintf("msg:%s:", *room)
	}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var message repositories.DiskMessage
				if err := json.Unmarshal(v, &message); err != nil {
					// Log and keep going instead of stopping the whole dump
					fmt.Printf("Error unmarshaling key %s: %v\n", string(it.Item().Key()), err)
					return nil
				}
				table.Append([]string{
					message.Room,
					message.At.Format("2006-01-02 15:04:05"),
					message.AuthorName,
					message.Content,
					message.ID.String(),
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
		log.Fatal("Error while scanning messages: ", err)
	}

	table.Render()
}

// openDB opens Badger read-only so a running relay keeps its lock.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR)
	return badger.Open(opts)
}
