package main

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/accountbook/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/accountbook/internal/account"
	accountStore "github.com/MrJamesThe3rd/accountbook/internal/account/store"
	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	balanceStore "github.com/MrJamesThe3rd/accountbook/internal/balance/store"
	"github.com/MrJamesThe3rd/accountbook/internal/config"
	"github.com/MrJamesThe3rd/accountbook/internal/database"
	"github.com/MrJamesThe3rd/accountbook/internal/importer"
	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/accountbook/internal/ledger/store"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
	txStore "github.com/MrJamesThe3rd/accountbook/internal/transaction/store"
)

type model struct {
	accountService *account.Service
	balanceService *balance.Service
	txService      *transaction.Service
	processor      *ledger.Processor
	importService  *importer.Service

	currentView View

	accountsView     view.AccountsModel
	transactionsView view.TransactionsModel
	importView       view.ImportModel
}

type View int

const (
	ViewMenu         View = 0
	ViewAccounts     View = 1
	ViewTransactions View = 2
	ViewImport       View = 3
)

func initialModel() model {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	accSvc := account.NewService(accountStore.New(db))
	balSvc := balance.NewService(balanceStore.New(db))
	txSvc := transaction.NewService(txStore.New(db))
	processor := ledger.NewProcessor(ledgerStore.New(db))
	impSvc := importer.NewService(processor)

	return model{
		accountService: accSvc,
		balanceService: balSvc,
		txService:      txSvc,
		processor:      processor,
		importService:  impSvc,
		currentView:    ViewMenu,
		accountsView:   view.NewAccountsModel(accSvc, balSvc, processor),
		importView:     view.NewImportModel(impSvc),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewAccounts
				m.accountsView = view.NewAccountsModel(m.accountService, m.balanceService, m.processor)

				return m, m.accountsView.Init()
			case "2":
				m.currentView = ViewImport
				m.importView = view.NewImportModel(m.importService)

				return m, m.importView.Init()
			}
		}
	case view.OpenTransactionsMsg:
		m.currentView = ViewTransactions
		m.transactionsView = view.NewTransactionsModel(m.txService, m.processor, msg.Row)

		return m, m.transactionsView.Init()
	case view.BackMsg:
		// Transactions are opened from the accounts screen, so they go back there.
		if m.currentView == ViewTransactions {
			m.currentView = ViewAccounts
			return m, m.accountsView.Init()
		}

		m.currentView = ViewMenu

		return m, nil
	}

	switch m.currentView {
	case ViewAccounts:
		var newModel tea.Model
		newModel, cmd = m.accountsView.Update(msg)
		m.accountsView = newModel.(view.AccountsModel)
	case ViewTransactions:
		var newModel tea.Model
		newModel, cmd = m.transactionsView.Update(msg)
		m.transactionsView = newModel.(view.TransactionsModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"Accountbook TUI\n\n" +
				"1. Accounts and Balances\n" +
				"2. Import Transactions\n\n" +
				"q. Quit",
		)
	case ViewAccounts:
		return m.accountsView.View()
	case ViewTransactions:
		return m.transactionsView.View()
	case ViewImport:
		return m.importView.View()
	}

	return "Unknown View"
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
