package bank

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FileClient satisfies Client by reading a CSV account export instead of the
// bank API. Useful for banks without API access and as the offline path in
// development. Auth is a no-op: StartAuth never yields a TAN challenge.
//
// CSV columns: booking_date (2006-01-02), amount, currency, payee, memo,
// reference, id. The id column may be empty; a deterministic id is derived
// from the row content then.
type FileClient struct {
	Path     string
	Timezone *time.Location

	now func() time.Time // test hook
}

// NewFileClient reads transactions from the export at path, interpreting
// dates in loc (local time when nil).
func NewFileClient(path string, loc *time.Location) *FileClient {
	return &FileClient{Path: path, Timezone: loc}
}

func (c *FileClient) StartAuth(ctx context.Context, creds Credentials) (AuthSession, error) {
	if _, err := os.Stat(c.Path); err != nil {
		return AuthSession{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return AuthSession{ID: uuid.NewString()}, nil
}

func (c *FileClient) CompleteAuth(ctx context.Context, session AuthSession) (Tokens, error) {
	return Tokens{Access: session.ID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (c *FileClient) FetchTransactions(ctx context.Context, tokens Tokens, accountID string, daysBack int) ([]Transaction, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return c.parse(f, daysBack)
}

func (c *FileClient) parse(r io.Reader, daysBack int) ([]Transaction, error) {
	loc := c.Timezone
	if loc == nil {
		loc = time.Local
	}
	nowFn := c.now
	if nowFn == nil {
		nowFn = time.Now
	}
	cutoff := nowFn().In(loc).AddDate(0, 0, -daysBack)

	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	var out []Transaction
	line := 0
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("line %d: expected at least 6 columns (booking_date, amount, currency, payee, memo, reference)", line)
		}
		date, err := parseLocalDate(rec[0], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d booking_date: %w", line, err)
		}
		amount, err := parseAmount(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d amount: %w", line, err)
		}
		tx := Transaction{
			BookingDate: date,
			Amount:      amount,
			Currency:    strings.TrimSpace(rec[2]),
			Payee:       strings.TrimSpace(rec[3]),
			Memo:        strings.TrimSpace(rec[4]),
			Reference:   strings.TrimSpace(rec[5]),
		}
		if len(rec) > 6 && strings.TrimSpace(rec[6]) != "" {
			tx.ID = strings.TrimSpace(rec[6])
		} else {
			tx.ID = deterministicTransactionID(rec[0], rec[1], rec[3], rec[5])
		}
		if tx.BookingDate.Before(cutoff) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// parseAmount accepts plain decimals plus the two export conventions seen in
// the wild: US-style thousands grouping ("1,234.56") and German-style
// comma-decimal ("1.234,56", "-12,34"). Anything else is rejected rather than
// guessed at; a misread amount would corrupt dedup and import downstream.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	switch {
	case !strings.Contains(s, ","):
		return decimal.NewFromString(s)
	case decimalComma(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		return decimal.NewFromString(s)
	case thousandsGrouped(s):
		return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	default:
		return decimal.Decimal{}, fmt.Errorf("ambiguous amount %q", s)
	}
}

// decimalComma reports whether the single comma in s is a decimal separator:
// followed by one or two digits at the end of the string.
func decimalComma(s string) bool {
	if strings.Count(s, ",") != 1 {
		return false
	}
	frac := s[strings.IndexByte(s, ',')+1:]
	if len(frac) == 0 || len(frac) > 2 {
		return false
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// thousandsGrouped reports whether every comma in s precedes a group of
// exactly three digits, i.e. the commas are thousands separators.
func thousandsGrouped(s string) bool {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		if i == 0 {
			continue
		}
		digits := p
		if j := strings.IndexByte(p, '.'); j >= 0 {
			if i != len(parts)-1 {
				return false
			}
			digits = p[:j]
		}
		if len(digits) != 3 {
			return false
		}
	}
	return true
}

func parseLocalDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func deterministicTransactionID(parts ...string) string {
	key := strings.ToLower(strings.Join(parts, "|"))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("tx:"+key)).String()
}
