package ynab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.ynab.com/v1"

// HTTPClient talks to the YNAB REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient returns a client authenticated with a personal access token.
func NewHTTPClient(token string) *HTTPClient {
	return &HTTPClient{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type wireTransaction struct {
	ID              string            `json:"id,omitempty"`
	AccountID       string            `json:"account_id,omitempty"`
	Date            string            `json:"date"`
	Amount          int64             `json:"amount"`
	PayeeName       string            `json:"payee_name,omitempty"`
	CategoryID      string            `json:"category_id,omitempty"`
	Memo            string            `json:"memo,omitempty"`
	Cleared         string            `json:"cleared,omitempty"`
	ImportID        string            `json:"import_id,omitempty"`
	Subtransactions []wireSubTransact `json:"subtransactions,omitempty"`
}

type wireSubTransact struct {
	Amount     int64  `json:"amount"`
	CategoryID string `json:"category_id,omitempty"`
	Memo       string `json:"memo,omitempty"`
}

func (c *HTTPClient) ListRecentTransactions(ctx context.Context, budgetID string) ([]ExistingTransaction, error) {
	since := time.Now().AddDate(0, 0, -90).Format(time.DateOnly)
	var resp struct {
		Data struct {
			Transactions []wireTransaction `json:"transactions"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/budgets/%s/transactions?since_date=%s", budgetID, since)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]ExistingTransaction, 0, len(resp.Data.Transactions))
	for _, wt := range resp.Data.Transactions {
		date, err := time.Parse(time.DateOnly, wt.Date)
		if err != nil {
			return nil, fmt.Errorf("ynab: parse date %q: %w", wt.Date, err)
		}
		out = append(out, ExistingTransaction{
			ID:        wt.ID,
			Date:      date,
			Amount:    FromMilliunits(wt.Amount),
			PayeeName: wt.PayeeName,
			Memo:      wt.Memo,
			ImportID:  wt.ImportID,
		})
	}
	return out, nil
}

func (c *HTTPClient) ListCategories(ctx context.Context, budgetID string) ([]Category, error) {
	var resp struct {
		Data struct {
			CategoryGroups []struct {
				Name       string `json:"name"`
				Hidden     bool   `json:"hidden"`
				Categories []struct {
					ID     string `json:"id"`
					Name   string `json:"name"`
					Hidden bool   `json:"hidden"`
				} `json:"categories"`
			} `json:"category_groups"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/budgets/"+budgetID+"/categories", nil, &resp); err != nil {
		return nil, err
	}
	var out []Category
	for _, g := range resp.Data.CategoryGroups {
		if g.Hidden {
			continue
		}
		for _, cat := range g.Categories {
			if cat.Hidden {
				continue
			}
			out = append(out, Category{ID: cat.ID, Name: cat.Name, Group: g.Name})
		}
	}
	return out, nil
}

func (c *HTTPClient) ImportTransaction(ctx context.Context, budgetID, accountID string, tx NewTransaction) (ImportResult, error) {
	wt := wireTransaction{
		AccountID: accountID,
		Date:      tx.Date.Format(time.DateOnly),
		Amount:    Milliunits(tx.Amount),
		PayeeName: tx.PayeeName,
		Memo:      tx.Memo,
		Cleared:   "cleared",
		ImportID:  tx.ImportID,
	}
	if len(tx.SubTransactions) > 0 {
		for _, st := range tx.SubTransactions {
			wt.Subtransactions = append(wt.Subtransactions, wireSubTransact{
				Amount:     Milliunits(st.Amount),
				CategoryID: st.CategoryID,
				Memo:       st.Memo,
			})
		}
	} else {
		wt.CategoryID = tx.CategoryID
	}

	body := struct {
		Transactions []wireTransaction `json:"transactions"`
	}{Transactions: []wireTransaction{wt}}

	var resp struct {
		Data struct {
			TransactionIDs     []string `json:"transaction_ids"`
			DuplicateImportIDs []string `json:"duplicate_import_ids"`
		} `json:"data"`
	}
	err := c.do(ctx, http.MethodPost, "/budgets/"+budgetID+"/transactions", body, &resp)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status < 500 && ae.Status != http.StatusUnauthorized {
			return ImportResult{Kind: RejectedOther, Message: ae.Detail}, nil
		}
		return ImportResult{}, err
	}
	for _, dup := range resp.Data.DuplicateImportIDs {
		if dup == tx.ImportID {
			return ImportResult{Kind: RejectedDuplicate, Message: "duplicate import_id " + dup}, nil
		}
	}
	return ImportResult{Kind: Accepted}, nil
}

type apiError struct {
	Status int
	Name   string
	Detail string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("ynab: %d %s: %s", e.Status, e.Name, e.Detail)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ynab: marshal request: %w", err)
		}
		rd = bytes.NewReader(buf)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ynab: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		var e struct {
			Error struct {
				Name   string `json:"name"`
				Detail string `json:"detail"`
			} `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&e)
		return &apiError{Status: res.StatusCode, Name: e.Error.Name, Detail: e.Error.Detail}
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("ynab: decode response: %w", err)
		}
	}
	return nil
}
