package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/accountbook/internal/account"
	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

// Ledger is the part of the ledger processor the TUI drives.
type Ledger interface {
	Process(ctx context.Context, params ledger.PostParams) (*transaction.Transaction, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type accountsState int

const (
	accountsStateBrowse accountsState = iota
	accountsStateCreate
	accountsStatePost
)

// AccountRow is an account with its current balance, if it has one.
type AccountRow struct {
	Account *account.Account
	Balance *balance.Balance
}

// OpenTransactionsMsg asks the program to show the transactions of an account.
type OpenTransactionsMsg struct {
	Row AccountRow
}

type AccountsModel struct {
	CommonModel
	accounts *account.Service
	balances *balance.Service
	ledger   Ledger

	state accountsState
	table table.Model
	rows  []AccountRow
	form  *huh.Form

	loading bool
	err     error
	status  string

	// huh binds to these through pointers, so they live outside the
	// model value that bubbletea copies on every update.
	fields *accountFields
}

type accountFields struct {
	name   string
	typ    string
	amount string
	date   string
}

func NewAccountsModel(accounts *account.Service, balances *balance.Service, l Ledger) AccountsModel {
	columns := []table.Column{
		{Title: "Name", Width: 30},
		{Title: "Status", Width: 10},
		{Title: "Balance", Width: 16},
		{Title: "Opened", Width: 12},
	}

	return AccountsModel{
		accounts: accounts,
		balances: balances,
		ledger:   l,
		table:    newTable(columns),
		fields:   &accountFields{},
		loading:  true,
	}
}

func (m AccountsModel) Title() string { return "Accounts" }

func (m AccountsModel) ShortHelp() string {
	if m.state != accountsStateBrowse {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | Enter: transactions | n: new account | p: post | r: refresh"
}

func (m AccountsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m AccountsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadAccountsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.rows = msg.rows
		m.refreshTable()

		return m, nil

	case accountsActionMsg:
		m.status = msg.status
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		m.state = accountsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(max(msg.Height-10, 5))

		return m, nil
	}

	if m.state == accountsStateBrowse {
		return m.updateBrowse(msg)
	}

	return m.updateForm(msg)
}

func (m AccountsModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "n":
			return m.enterCreate()
		case "p":
			return m.enterPost()
		case "enter":
			row, ok := m.selected()
			if !ok {
				return m, nil
			}

			return m, func() tea.Msg { return OpenTransactionsMsg{Row: row} }
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m AccountsModel) enterCreate() (tea.Model, tea.Cmd) {
	m.fields.name = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Account name").
				Value(&m.fields.name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name cannot be empty")
					}
					return nil
				}),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = accountsStateCreate
	m.table.Blur()

	return m, m.form.Init()
}

func (m AccountsModel) enterPost() (tea.Model, tea.Cmd) {
	if _, ok := m.selected(); !ok {
		return m, nil
	}

	m.fields.typ = string(transaction.TypeCredit)
	m.fields.amount = ""
	m.fields.date = FormatTime(time.Now())

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("type").
				Title("Type").
				Options(
					huh.NewOption("Credit", string(transaction.TypeCredit)),
					huh.NewOption("Debit", string(transaction.TypeDebit)),
				).
				Value(&m.fields.typ),

			huh.NewInput().
				Key("amount").
				Title("Amount").
				Placeholder("0.00").
				Value(&m.fields.amount).
				Validate(validateAmount),

			huh.NewInput().
				Key("date").
				Title("Effective date").
				Placeholder("YYYY-MM-DD").
				Value(&m.fields.date).
				Validate(func(s string) error {
					_, err := transaction.ParseDate(strings.TrimSpace(s))
					return err
				}),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = accountsStatePost
	m.table.Blur()

	return m, m.form.Init()
}

func validateAmount(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return errors.New("amount must be a number")
	}

	if d.IsNegative() {
		return transaction.ErrInvalidAmount
	}

	return nil
}

func (m AccountsModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = accountsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if m.state == accountsStateCreate {
		return m, m.createCmd(strings.TrimSpace(m.fields.name))
	}

	return m, m.postCmd()
}

func (m AccountsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading accounts...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v\n\n(Esc to back)", m.err))
	}

	header := fmt.Sprintf("Accounts: %s | Total: %s",
		activeStyle(fmt.Sprint(len(m.rows))),
		activeStyle(FormatAmount(m.total())),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		framed(m.table.View()),
	)

	if m.form != nil {
		title := "Open Account"
		if m.state == accountsStatePost {
			row, _ := m.selected()
			title = "Post to " + row.Account.Name
		}

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel(title, m.form.View()))
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content + "\n\n" + m.ShortHelp())
}

func (m AccountsModel) selected() (AccountRow, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.rows) {
		return AccountRow{}, false
	}

	return m.rows[idx], true
}

func (m AccountsModel) total() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range m.rows {
		if r.Balance != nil {
			sum = sum.Add(r.Balance.Total)
		}
	}

	return sum
}

func (m *AccountsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		status := "active"
		if r.Account.Disabled {
			status = "disabled"
		}

		total := "-"
		if r.Balance != nil {
			total = FormatAmount(r.Balance.Total)
		}

		rows = append(rows, table.Row{r.Account.Name, status, total, FormatTime(r.Account.CreatedAt)})
	}

	m.table.SetRows(rows)
}

// Messages

type loadAccountsMsg struct {
	rows []AccountRow
	err  error
}

func (m AccountsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		accounts, err := m.accounts.List(ctx)
		if err != nil {
			return loadAccountsMsg{err: err}
		}

		balances, err := m.balances.List(ctx)
		if err != nil {
			return loadAccountsMsg{err: err}
		}

		return loadAccountsMsg{rows: joinBalances(accounts, balances)}
	}
}

func joinBalances(accounts []*account.Account, balances []*balance.Balance) []AccountRow {
	byAccount := make(map[uuid.UUID]*balance.Balance, len(balances))
	for _, b := range balances {
		byAccount[b.AccountID] = b
	}

	rows := make([]AccountRow, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, AccountRow{Account: a, Balance: byAccount[a.ID]})
	}

	return rows
}

type accountsActionMsg struct {
	status string
	err    error
}

func (m AccountsModel) createCmd(name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		a, err := m.accounts.Create(ctx, account.CreateParams{Name: name})
		if err != nil {
			return accountsActionMsg{err: err}
		}

		return accountsActionMsg{status: fmt.Sprintf("Opened %s.", a.Name)}
	}
}

func (m AccountsModel) postCmd() tea.Cmd {
	row, ok := m.selected()
	if !ok {
		return nil
	}

	typ := transaction.Type(m.fields.typ)
	amount, amountErr := decimal.NewFromString(strings.TrimSpace(m.fields.amount))
	date, dateErr := transaction.ParseDate(strings.TrimSpace(m.fields.date))

	return func() tea.Msg {
		if err := errors.Join(amountErr, dateErr); err != nil {
			return accountsActionMsg{err: err}
		}

		ctx, cancel := DbCtx()
		defer cancel()

		_, err := m.ledger.Process(ctx, ledger.PostParams{
			AccountID:     row.Account.ID,
			Type:          typ,
			Amount:        amount,
			EffectiveDate: date,
		})
		if errors.Is(err, balance.ErrNegative) {
			return accountsActionMsg{err: fmt.Errorf("%s would overdraw %s", FormatAmount(amount), row.Account.Name)}
		}

		if err != nil {
			return accountsActionMsg{err: err}
		}

		return accountsActionMsg{status: fmt.Sprintf("Posted %s %s to %s.", typ, FormatAmount(amount), row.Account.Name)}
	}
}
