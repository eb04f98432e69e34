package view

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

// txItem wraps a transaction to implement list.Item.
type txItem struct {
	tx *transaction.Transaction
}

func (i txItem) Title() string {
	kind := lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("[%s]", i.tx.Type))

	amount := FormatAmount(i.tx.Amount)
	if i.tx.Type == transaction.TypeDebit {
		amount = "-" + amount
	}

	return fmt.Sprintf("%s  %12s  %s", i.tx.EffectiveDate, amount, kind)
}

func (i txItem) Description() string {
	return fmt.Sprintf("Recorded %s", i.tx.CreatedAt.Format(time.DateTime))
}

func (i txItem) FilterValue() string {
	return i.tx.EffectiveDate.String()
}

// TransactionsModel lists the transactions of one account.
type TransactionsModel struct {
	CommonModel
	txService *transaction.Service
	ledger    Ledger

	row       AccountRow
	timeframe Timeframe
	list      list.Model

	confirming bool
	loading    bool
	err        error
	status     string
}

func NewTransactionsModel(txSvc *transaction.Service, l Ledger, row AccountRow) TransactionsModel {
	lst := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	lst.Title = row.Account.Name
	lst.SetShowHelp(false)
	lst.SetFilteringEnabled(false)

	return TransactionsModel{
		txService: txSvc,
		ledger:    l,
		row:       row,
		list:      lst,
		loading:   true,
	}
}

func (m TransactionsModel) Title() string { return "Transactions" }

func (m TransactionsModel) ShortHelp() string {
	if m.confirming {
		return "y: remove | any other key: cancel"
	}

	return "Esc: back | t: timeframe | x: remove | r: refresh"
}

func (m TransactionsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m TransactionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadTxsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil

		items := make([]list.Item, len(msg.txs))
		for i, tx := range msg.txs {
			items[i] = txItem{tx: tx}
		}

		return m, m.list.SetItems(items)

	case removeTxMsg:
		m.status = "Transaction removed."
		if errors.Is(msg.err, balance.ErrNegative) {
			m.status = "Removing it would take the balance below zero."
		} else if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, max(msg.Height-8, 5))

		return m, nil

	case tea.KeyMsg:
		if m.confirming {
			m.confirming = false
			if msg.String() == "y" {
				return m, m.removeCmd()
			}

			m.status = ""

			return m, nil
		}

		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "t":
			m.timeframe = m.timeframe.Next()
			m.loading = true

			return m, m.loadCmd()
		case "x":
			if _, ok := m.list.SelectedItem().(txItem); ok {
				m.confirming = true
				m.status = "Remove the selected transaction?"
			}

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	return m, cmd
}

func (m TransactionsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v\n\n(Esc to back)", m.err))
	}

	header := fmt.Sprintf("[t] Timeframe: %s", activeStyle(m.timeframe.String()))

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		m.list.View(),
	)

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content + "\n\n" + m.ShortHelp())
}

// Messages

type loadTxsMsg struct {
	txs []*transaction.Transaction
	err error
}

func (m TransactionsModel) loadCmd() tea.Cmd {
	accountID := m.row.Account.ID
	start, end := m.timeframe.Range(time.Now())

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		txs, err := m.txService.List(ctx, transaction.ListFilter{
			AccountID: &accountID,
			StartDate: start,
			EndDate:   end,
		})

		return loadTxsMsg{txs: txs, err: err}
	}
}

type removeTxMsg struct {
	err error
}

func (m TransactionsModel) removeCmd() tea.Cmd {
	item, ok := m.list.SelectedItem().(txItem)
	if !ok {
		return nil
	}

	id := item.tx.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		return removeTxMsg{err: m.ledger.Remove(ctx, id)}
	}
}
