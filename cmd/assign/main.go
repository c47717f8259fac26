package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	environment "reseller-panel/internal/env"
	"reseller-panel/internal/stories/continuous"
)

type row struct {
	line  int
	ref   continuous.ProductRef
	named bool
}

func main() {
	userID := flag.Int64("user", 0, "user whose continuous orders are edited")
	csvPath := flag.String("csv", "", "CSV file with product_id[,title[,price]] rows")
	offset := flag.String("offset", "", "start continuous orders after this order number (default: keep current)")
	dryRun := flag.Bool("dry-run", false, "show what would be assigned without committing")
	flag.Parse()

	if *userID <= 0 {
		log.Fatal("user id is required: -user <id>")
	}
	if *csvPath == "" {
		log.Fatal("csv file is required: -csv <path>")
	}

	file, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *csvPath, err)
	}
	defer file.Close()

	rows, skipped, parseErrors := readRows(file)

	ctx := context.Background()
	env, err := environment.Setup(ctx)
	if err != nil {
		log.Fatalf("Failed to setup environment: %v", err)
	}
	defer func() {
		for _, closer := range env.Closers {
			closer()
		}
	}()

	sessions := env.Services.Continuous
	view, err := sessions.Open(ctx, *userID)
	if err != nil {
		log.Fatalf("failed to open session for user %d: %v", *userID, err)
	}
	defer func() { _ = sessions.Close(view.SessionID) }()

	fmt.Printf("User %s (#%d): %d assigned, max orders %d, start after %d\n",
		view.Overview.Username, view.Overview.UserID, len(view.Overview.AssignedProducts),
		view.Overview.MaxOrdersByLevel, view.Offset)

	if *offset != "" {
		if err := checkOffset(*offset, view.Overview.MaxOrdersByLevel); err != nil {
			log.Fatalf("invalid offset %q: %v", *offset, err)
		}
		if view, err = sessions.SetOffset(view.SessionID, *offset); err != nil {
			log.Fatalf("invalid offset %q: %v", *offset, err)
		}
	}

	var imported int
	errCount := parseErrors
	for _, r := range rows {
		if !r.named {
			p, err := env.Services.Products.Lookup(ctx, r.ref.ID, userID)
			if err != nil {
				fmt.Printf("line %d: product %d: %v\n", r.line, r.ref.ID, err)
				errCount++
				continue
			}
			r.ref.Title = p.Title
			r.ref.Price = &p.Price
		}

		view, err = sessions.Insert(view.SessionID, r.ref)
		switch {
		case errors.Is(err, continuous.ErrAlreadyAssigned):
			fmt.Printf("line %d: product %d already assigned, skipping\n", r.line, r.ref.ID)
			skipped++
		case err != nil:
			fmt.Printf("line %d: product %d: %v\n", r.line, r.ref.ID, err)
			errCount++
		default:
			imported++
			fmt.Printf("line %d: %d %q -> position %d\n", r.line, r.ref.ID, r.ref.Title, view.NextPosition-1)
		}
	}

	fmt.Printf("\n=== TOTAL ===\n")
	fmt.Printf("Imported: %d\n", imported)
	fmt.Printf("Skipped: %d\n", skipped)
	fmt.Printf("Errors: %d\n", errCount)

	if *dryRun {
		fmt.Println("\n(DRY RUN - nothing was sent to the backend)")
		return
	}
	if imported == 0 {
		fmt.Println("\nNothing to commit")
		return
	}

	view, err = sessions.Commit(ctx, view.SessionID, commitOffset(*offset, view.Offset))
	if err != nil {
		log.Fatalf("commit failed: %v", err)
	}
	fmt.Printf("\nCommitted: %d products assigned, start after %d\n", len(view.Overview.AssignedProducts), view.Offset)
}

// checkOffset rejects an -offset value the backend would refuse, before any
// product is queued. SetOffset alone would clamp it silently.
func checkOffset(raw string, maxOrders int) error {
	n, err := continuous.ParseOffset(raw)
	if err != nil {
		return err
	}
	if n > maxOrders {
		return fmt.Errorf("%w: %d > %d", continuous.ErrOffsetAboveMax, n, maxOrders)
	}
	return nil
}

// commitOffset is the offset text sent on commit: the operator's own -offset
// when given, otherwise the session's current offset.
func commitOffset(raw string, current int) string {
	if raw != "" {
		return raw
	}
	return strconv.Itoa(current)
}

// readRows parses product_id[,title[,price]] records. A non-numeric first
// line is treated as a header; blank lines and lines starting with # are
// skipped.
func readRows(r io.Reader) (rows []row, skipped, errCount int) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, skipped, errCount
		}
		line++
		if err != nil {
			fmt.Printf("line %d: %v\n", line, err)
			errCount++
			continue
		}

		parsed, ok, err := parseRecord(record)
		switch {
		case err != nil && line == 1:
			// заголовок
			continue
		case err != nil:
			fmt.Printf("line %d: %v\n", line, err)
			errCount++
		case !ok:
			skipped++
		default:
			parsed.line = line
			rows = append(rows, parsed)
		}
	}
}

func parseRecord(record []string) (row, bool, error) {
	if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
		return row{}, false, nil
	}

	id, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil || id <= 0 {
		return row{}, false, fmt.Errorf("invalid product id %q", record[0])
	}

	r := row{ref: continuous.ProductRef{ID: id}}
	if len(record) > 1 {
		r.ref.Title = strings.TrimSpace(record[1])
		r.named = r.ref.Title != ""
	}
	if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
		price, err := decimal.NewFromString(strings.TrimSpace(record[2]))
		if err != nil {
			return row{}, false, fmt.Errorf("invalid price %q: %w", record[2], err)
		}
		r.ref.Price = &price
	}
	return r, true, nil
}
