package parser

import (
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/KitsFC/kefelan-year-end/internal/models"
	"github.com/KitsFC/kefelan-year-end/internal/rules"
)

var (
	fy2025Start = civil.Date{Year: 2025, Month: 1, Day: 1}
	fy2025End   = civil.Date{Year: 2025, Month: 12, Day: 31}
)

func cardSource(path, data string, owner models.AccountOwner) Source {
	return Source{
		Path: path,
		Data: []byte(data),
		Account: models.Account{
			Owner:         owner,
			Name:          "TD Business VISA",
			PaymentMethod: "credit_card",
			CardLast4:     "5143",
			Polarity:      models.PolarityChargesPositive,
		},
		FiscalYear: 2025,
		Start:      fy2025Start,
		End:        fy2025End,
		Domestic:   "CAD",
	}
}

func mustParse(t *testing.T, src Source) *models.Statement {
	t.Helper()
	st, err := New(rules.Default()).Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return st
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		want Encoding
	}{
		{"csv extension", Source{Path: "bank.CSV"}, EncodingCSV},
		{"forced csv", Source{Path: "bank.txt", Format: "csv"}, EncodingCSV},
		{"table rows", Source{Path: "visa.md", Data: []byte("<table><tr><td>x</td></tr></table>")}, EncodingTable},
		{"plain lines", Source{Path: "visa.md", Data: []byte("DEC 3 DEC 5 SHOP 1.00")}, EncodingLines},
		{"markdown ignores extension", Source{Path: "visa.csv", Format: "markdown"}, EncodingLines},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.src); got != tt.want {
				t.Errorf("Detect = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	data := "01/02/2025,MONTHLY PLAN FEE,19.00,,1000.00\n" +
		"01/05/2025,E-TRANSFER FROM CLIENT,,1500.00,2500.00\n" +
		"12/31/2024,OLD ROW,5.00,,\n" +
		"01/07/2025,,5.00,,\n" +
		"01/08/2025,BAD AMOUNT,abc,,\n" +
		"not a date,IGNORED,1.00,,\n"
	src := Source{
		Path:       "FY2025/bank.csv",
		Data:       []byte(data),
		Account:    models.Account{Owner: models.OwnerCorporate, Name: "TD Business Chequing", PaymentMethod: "chequing", Polarity: models.PolarityDebitCredit},
		FiscalYear: 2025,
		Start:      fy2025Start,
		End:        fy2025End,
	}
	st := mustParse(t, src)

	if len(st.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(st.Transactions))
	}
	fee := st.Transactions[0]
	if !fee.CADAmount.Equal(dec("-19")) || fee.Counterparty != "Bank fee" {
		t.Errorf("fee = %s %q", fee.CADAmount, fee.Counterparty)
	}
	if fee.SourceType != models.SourceBankCSV || fee.SourceLocator != "line=1" {
		t.Errorf("fee source = %s %s", fee.SourceType, fee.SourceLocator)
	}
	if !strings.HasPrefix(fee.ID, "tx-2025-bank-20250102-") {
		t.Errorf("fee id = %s", fee.ID)
	}
	if fee.Currency != "CAD" {
		t.Errorf("default currency = %q", fee.Currency)
	}
	deposit := st.Transactions[1]
	if !deposit.CADAmount.Equal(dec("1500")) || deposit.Counterparty != "Interac e-Transfer" {
		t.Errorf("deposit = %s %q", deposit.CADAmount, deposit.Counterparty)
	}
	if st.Outside != 1 {
		t.Errorf("Outside = %d, want 1", st.Outside)
	}
	if len(st.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %+v", st.Diagnostics)
	}
	if st.Diagnostics[0].Reason != "empty description" || st.Diagnostics[1].Locator != "line=5" {
		t.Errorf("diagnostics = %+v", st.Diagnostics)
	}
}

func TestParseCSVHeader(t *testing.T) {
	data := "Date,Description,Amount\n2025-03-01,SHOP CO,-12.50\n2025-03-02,REFUND,4.00\n"
	src := Source{
		Path:       "card.csv",
		Data:       []byte(data),
		Account:    models.Account{Owner: models.OwnerCorporate, Name: "Card", Polarity: models.PolaritySigned},
		FiscalYear: 2025,
		Start:      fy2025Start,
		End:        fy2025End,
	}
	st := mustParse(t, src)
	if len(st.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(st.Transactions))
	}
	if !st.Transactions[0].CADAmount.Equal(dec("-12.5")) || st.Transactions[0].SourceLocator != "line=2" {
		t.Errorf("first = %s at %s", st.Transactions[0].CADAmount, st.Transactions[0].SourceLocator)
	}
	if !st.Transactions[1].CADAmount.Equal(dec("4")) {
		t.Errorf("second = %s", st.Transactions[1].CADAmount)
	}
}

func TestParseTableYearRollover(t *testing.T) {
	data := `<table>
<tr><td>STATEMENT PERIOD: December 15, 2024 to January 14, 2025</td></tr>
<tr><td>DEC 30</td><td>DEC 31</td><td>OLD YEAR SHOP</td><td>$20.00</td></tr>
<tr><td>JAN 2</td><td>JAN 3</td><td>AMZN Mktp CA</td><td>$45.10</td></tr>
<tr><td>JAN 5</td><td>JAN 6</td><td>PAYMENT - THANK YOU</td><td>-$500.00</td></tr>
</table>`
	st := mustParse(t, cardSource("FY2025/visa.md", data, models.OwnerCorporate))

	if st.Outside != 1 {
		t.Errorf("Outside = %d, want 1 (Dec 31 2024 row)", st.Outside)
	}
	if len(st.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(st.Transactions))
	}
	amzn := st.Transactions[0]
	if amzn.Date != (civil.Date{Year: 2025, Month: 1, Day: 3}) {
		t.Errorf("posting date = %s", amzn.Date)
	}
	if !amzn.CADAmount.Equal(dec("-45.10")) || amzn.Counterparty != "Amazon" {
		t.Errorf("amzn = %s %q", amzn.CADAmount, amzn.Counterparty)
	}
	if amzn.SourceLocator != "tr=3" || amzn.SourceType != models.SourceCardMD {
		t.Errorf("amzn locator = %s %s", amzn.SourceLocator, amzn.SourceType)
	}
	if !strings.HasPrefix(amzn.ID, "tx-2025-cc-20250103-") {
		t.Errorf("amzn id = %s", amzn.ID)
	}
	payment := st.Transactions[1]
	if !payment.CADAmount.Equal(dec("500")) {
		t.Errorf("card payment should be an inflow, got %s", payment.CADAmount)
	}
	if len(st.Periods) != 1 {
		t.Errorf("periods = %v", st.Periods)
	}
}

func TestParseTableSingleYearPeriodExcluded(t *testing.T) {
	data := `<table>
<tr><td>STATEMENT PERIOD: December 1, 2024 to December 31, 2024</td></tr>
<tr><td>DEC 30</td><td>DEC 31</td><td>LAST SHOP</td><td>$20.00</td></tr>
</table>`
	st := mustParse(t, cardSource("FY2025/visa.md", data, models.OwnerCorporate))
	if len(st.Transactions) != 0 || st.Outside != 1 {
		t.Errorf("expected the 2024-12-31 row to be dropped, got %d txns, %d outside", len(st.Transactions), st.Outside)
	}
}

func TestParseTableDescriptionRecovery(t *testing.T) {
	data := `<table>
<tr><td>STATEMENT PERIOD: March 1, 2025 to March 31, 2025</td></tr>
<tr><td>MAR 3</td><td>MAR 4</td><td></td><td>$12.00</td></tr>
<tr><td></td><td>SUBTOTAL</td><td>UBER CANADA/UBERTRIP</td><td></td></tr>
</table>`
	st := mustParse(t, cardSource("FY2025/visa.md", data, models.OwnerCorporate))
	if len(st.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d (%+v)", len(st.Transactions), st.Diagnostics)
	}
	tx := st.Transactions[0]
	if tx.Description != "UBER CANADA/UBERTRIP" || tx.Counterparty != "Uber" {
		t.Errorf("recovered = %q / %q", tx.Description, tx.Counterparty)
	}
	if tx.Notes.String() != "AUTO: DESC_FROM_TR=3" {
		t.Errorf("notes = %q", tx.Notes.String())
	}
}

func TestParseTableFXAcrossRows(t *testing.T) {
	data := `<table>
<tr><td>STATEMENT PERIOD: April 1, 2025 to April 30, 2025</td></tr>
<tr><td>APR 2</td><td>APR 3</td><td>GITHUB INC</td><td>$13.80</td></tr>
<tr><td colspan="4">FOREIGN CURRENCY 10.00 USD @ EXCHANGE RATE 1.380000</td></tr>
<tr><td colspan="4">FOREIGN CURRENCY 99.00 EUR @ EXCHANGE RATE 1.500000</td></tr>
</table>`
	st := mustParse(t, cardSource("FY2025/visa.md", data, models.OwnerCorporate))
	if len(st.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(st.Transactions))
	}
	tx := st.Transactions[0]
	if tx.Currency != "USD" || !tx.Amount.Equal(dec("-10")) {
		t.Errorf("fx retrofit = %s %s", tx.Amount, tx.Currency)
	}
	if !tx.FXRate.Valid || !tx.FXRate.Decimal.Equal(dec("1.38")) {
		t.Errorf("rate = %v", tx.FXRate)
	}
	if !tx.CADAmount.Equal(dec("-13.80")) {
		t.Errorf("cad amount must not change, got %s", tx.CADAmount)
	}
	if tx.Notes.String() != "FX: 10.00 USD @ 1.380000" {
		t.Errorf("notes = %q", tx.Notes.String())
	}
}

func TestParseTableTextLines(t *testing.T) {
	data := `<table>
<tr><td>STATEMENT PERIOD: June 1, 2025 to June 30, 2025</td></tr>
<tr><td colspan="4">JUN 2 JUN 3 UBER TRIP 12.00<br/>FOREIGN CURRENCY 9.00 USD @ EXCHANGE RATE 1.3333<br/>JUN 4 JUN 5 SLACK T0123 8.00</td></tr>
</table>`
	st := mustParse(t, cardSource("FY2025/visa.md", data, models.OwnerCorporate))
	if len(st.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(st.Transactions))
	}
	uber, slack := st.Transactions[0], st.Transactions[1]
	if uber.SourceLocator != "tr=2;line=1" || uber.Currency != "USD" {
		t.Errorf("uber = %s %s", uber.SourceLocator, uber.Currency)
	}
	if slack.SourceLocator != "tr=2;line=3" || slack.Currency != "CAD" || slack.FXRate.Valid {
		t.Errorf("slack = %s %s %v", slack.SourceLocator, slack.Currency, slack.FXRate)
	}
}

func TestParseTablePersonalAndDiagnostics(t *testing.T) {
	data := `<table>
<tr><td>JAN 2</td><td>JAN 3</td><td>BEFORE PERIOD</td><td>$1.00</td></tr>
<tr><td>STATEMENT PERIOD: January 1, 2025 to January 31, 2025</td></tr>
<tr><td>JAN 4</td><td>JAN 5</td><td>ROGERS WIRELESS</td><td>n/a</td></tr>
<tr><td>JAN 6</td><td>JAN 7</td><td>ROGERS WIRELESS</td><td>$85.50</td></tr>
</table>`
	st := mustParse(t, cardSource("FY2025/personal.md", data, models.OwnerPersonal))
	if len(st.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(st.Transactions))
	}
	if st.Transactions[0].Notes.String() != NotePersonalCandidate {
		t.Errorf("notes = %q", st.Transactions[0].Notes.String())
	}
	if st.Transactions[0].AccountOwner != models.OwnerPersonal {
		t.Errorf("owner = %s", st.Transactions[0].AccountOwner)
	}
	if len(st.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %+v", st.Diagnostics)
	}
	if st.Diagnostics[0].Locator != "tr=1" || st.Diagnostics[1].Reason != "amount not parsed" {
		t.Errorf("diagnostics = %+v", st.Diagnostics)
	}
}

func TestParseThreeCellDatePair(t *testing.T) {
	data := `<table>
<tr><td>Statement period | Dec. 1, 2024 - Dec. 31, 2024</td></tr>
<tr><td>Statement period | Feb. 10, 2025 - Mar. 9, 2025</td></tr>
<tr><td>Feb. 12 Feb. 13</td><td>OPENAI *CHATGPT SUBSCR</td><td>28.00</td></tr>
<tr><td>Feb. 20 Feb. 21</td><td>PAYMENT RECEIVED - THANK YOU</td><td>300.00</td></tr>
<tr><td>Mar. 1 Mar. 2</td><td>REFUND SHOP</td><td>15.00 CR</td></tr>
</table>`
	st := mustParse(t, cardSource("FY2025/bmo.md", data, models.OwnerPersonal))
	if len(st.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d (%+v)", len(st.Transactions), st.Diagnostics)
	}
	want := []string{"-28", "300", "15"}
	for i, w := range want {
		if !st.Transactions[i].CADAmount.Equal(dec(w)) {
			t.Errorf("tx %d = %s, want %s", i, st.Transactions[i].CADAmount, w)
		}
	}
	if st.Transactions[0].Counterparty != "OpenAI" {
		t.Errorf("counterparty = %q", st.Transactions[0].Counterparty)
	}
}

func TestParseLinesMultiLineRecord(t *testing.T) {
	data := `STATEMENT PERIOD: May 1, 2025 to May 31, 2025
MAY 2
MAY 3
ORPHAN DESCRIPTION
MAY 4
MAY 5
GUARDIAN STORAGE
$84.00
FOREIGN CURRENCY 60.00 USD @ EXCHANGE RATE 1.4000
MAY 10 MAY 11 PARKING LOT 7.25
`
	st := mustParse(t, cardSource("FY2025/visa.md", data, models.OwnerCorporate))
	if len(st.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(st.Transactions))
	}
	storage := st.Transactions[0]
	if storage.SourceLocator != "lines=5-8" {
		t.Errorf("locator = %s", storage.SourceLocator)
	}
	if storage.Description != "GUARDIAN STORAGE" || !storage.CADAmount.Equal(dec("-84")) {
		t.Errorf("storage = %q %s", storage.Description, storage.CADAmount)
	}
	if storage.Date != (civil.Date{Year: 2025, Month: 5, Day: 5}) {
		t.Errorf("date = %s", storage.Date)
	}
	if storage.Currency != "USD" || !storage.Amount.Equal(dec("-60")) {
		t.Errorf("fx = %s %s", storage.Amount, storage.Currency)
	}
	parking := st.Transactions[1]
	if parking.SourceLocator != "line=10" || parking.Currency != "CAD" {
		t.Errorf("parking = %s %s", parking.SourceLocator, parking.Currency)
	}
}

func TestFXResetByPeriod(t *testing.T) {
	data := `STATEMENT PERIOD: May 1, 2025 to May 31, 2025
MAY 10 MAY 11 GITHUB 13.80
STATEMENT PERIOD: June 1, 2025 to June 30, 2025
FOREIGN CURRENCY 10.00 USD @ EXCHANGE RATE 1.3800
`
	st := mustParse(t, cardSource("FY2025/visa.md", data, models.OwnerCorporate))
	if len(st.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(st.Transactions))
	}
	if st.Transactions[0].Currency != "CAD" {
		t.Error("a new statement period must clear the pending transaction")
	}
}

func TestParseIsDeterministic(t *testing.T) {
	data := `STATEMENT PERIOD: May 1, 2025 to May 31, 2025
MAY 10 MAY 11 GITHUB 13.80
MAY 10 MAY 11 GITHUB 13.80
`
	a := mustParse(t, cardSource("FY2025/visa.md", data, models.OwnerCorporate))
	b := mustParse(t, cardSource("FY2025/visa.md", data, models.OwnerCorporate))
	if len(a.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(a.Transactions))
	}
	if a.Transactions[0].ID == a.Transactions[1].ID {
		t.Error("identical rows on different lines need distinct ids")
	}
	for i := range a.Transactions {
		if a.Transactions[i].ID != b.Transactions[i].ID {
			t.Errorf("id %d changed between runs", i)
		}
	}
}

func TestParseRejectsEmptyWindow(t *testing.T) {
	src := cardSource("x.md", "", models.OwnerCorporate)
	src.Start, src.End = src.End, src.Start
	if _, err := New(rules.Default()).Parse(src); err == nil {
		t.Error("expected error for an empty fiscal window")
	}
}

func TestParseLinesSingleRowSupersedesRecord(t *testing.T) {
	data := `STATEMENT PERIOD: January 1, 2025 to January 31, 2025
JAN 5
JAN 6
COFFEE SHOP
JAN 7 JAN 8 UBER TRIP 12.34
NEW BALANCE
45.00
`
	st := mustParse(t, cardSource("FY2025/visa.md", data, models.OwnerCorporate))
	if len(st.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(st.Transactions))
	}
	if tx := st.Transactions[0]; tx.Description != "UBER TRIP" || tx.SourceLocator != "line=5" {
		t.Errorf("tx = %q at %s", tx.Description, tx.SourceLocator)
	}
}

func TestParseTabDatePairRows(t *testing.T) {
	data := "STATEMENT PERIOD: January 1, 2025 to January 31, 2025\n" +
		"Jan. 3 Jan. 4\tSTAPLES STORE 12\t45.10\n" +
		"Jan. 9 Jan. 10\tPAYMENT - THANK YOU\t500.00 CR\n" +
		"Jan. 12 Jan. 13\tBROKEN ROW\tn/a\n"
	st := mustParse(t, cardSource("FY2025/visa.txt", data, models.OwnerCorporate))
	if len(st.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d (%+v)", len(st.Transactions), st.Diagnostics)
	}

	tests := []struct {
		locator string
		date    civil.Date
		desc    string
		amount  string
	}{
		{"line=2", civil.Date{Year: 2025, Month: 1, Day: 4}, "STAPLES STORE 12", "-45.10"},
		{"line=3", civil.Date{Year: 2025, Month: 1, Day: 10}, "PAYMENT - THANK YOU", "500"},
	}
	for i, tt := range tests {
		tx := st.Transactions[i]
		t.Run(tt.desc, func(t *testing.T) {
			if tx.SourceLocator != tt.locator || tx.Date != tt.date || tx.Description != tt.desc {
				t.Errorf("got %s %s %q", tx.SourceLocator, tx.Date, tx.Description)
			}
			if !tx.CADAmount.Equal(dec(tt.amount)) {
				t.Errorf("amount = %s, want %s", tx.CADAmount, tt.amount)
			}
		})
	}

	if len(st.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v", st.Diagnostics)
	}
	if d := st.Diagnostics[0]; d.Locator != "line=4" || d.Reason != "amount not parsed" {
		t.Errorf("diagnostic = %+v", d)
	}
}
