// Package sequence allocates human-readable order numbers.
//
// Numbers come from a counter row that is incremented atomically inside the
// caller's transaction, so two concurrent checkouts can never read the same
// value. A rolled-back transaction also rolls back its increment.
package sequence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

const OrderNumbers = "order_number"

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Counter struct {
	name string
}

func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

func (c *Counter) Next(ctx context.Context, q Querier) (int64, error) {
	var value int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value)
		VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`, c.name).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", c.name, err)
	}
	return value, nil
}

// MemoryCounter is a process-local counter for tests and tooling.
type MemoryCounter struct {
	value atomic.Int64
}

func (m *MemoryCounter) Next() int64 {
	return m.value.Add(1)
}

type Formatter struct {
	Prefix string
	Width  int
}

var DefaultFormatter = Formatter{Prefix: "ORD-", Width: 6}

func (f Formatter) Format(n int64) string {
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Width, n)
}

func (f Formatter) Parse(number string) (int64, error) {
	digits, ok := strings.CutPrefix(number, f.Prefix)
	if !ok {
		return 0, fmt.Errorf("order number %q lacks prefix %q", number, f.Prefix)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("order number %q is not a positive sequence value", number)
	}
	return n, nil
}
