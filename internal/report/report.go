package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"payments-engine/internal/domain"
)

// Header is the first line of the textual report.
const Header = "client, available, held, total, locked"

// Row is the rendered form of one account.
type Row struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// FormatAmount renders exactly four fractional digits, rounding half to even.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixedBank(4)
}

func NewRow(account domain.Account) Row {
	return Row{
		Client:    account.ClientID,
		Available: FormatAmount(account.Available),
		Held:      FormatAmount(account.Held),
		Total:     FormatAmount(account.Total),
		Locked:    account.Locked,
	}
}

func Rows(accounts []domain.Account) []Row {
	rows := make([]Row, 0, len(accounts))
	for _, account := range accounts {
		rows = append(rows, NewRow(account))
	}
	return rows
}

// Write emits the header and one line per account in the given order.
func Write(w io.Writer, accounts []domain.Account) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, Header); err != nil {
		return err
	}
	for _, row := range Rows(accounts) {
		if _, err := fmt.Fprintf(bw, "%d, %s, %s, %s, %t\n",
			row.Client, row.Available, row.Held, row.Total, row.Locked); err != nil {
			return err
		}
	}

	return bw.Flush()
}
